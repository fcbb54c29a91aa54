package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, "current_user", cfg.Portal.UserID)
	assert.Equal(t, 10*time.Second, cfg.Portal.ScreenLoadTimeout)
	assert.True(t, cfg.Portal.PersistMembership)
	assert.True(t, cfg.Portal.PersistHelpRequests)
	assert.Equal(t, 4, cfg.Mutations.Workers)
	assert.Equal(t, "./exports", cfg.Exports.Dir)
	assert.Equal(t, 15*time.Minute, cfg.Exports.URLTTL)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORE_DRIVER", "Redis")
	v.Set("MUTATION_TIMEOUT", "250ms")
	v.Set("SCREEN_LOAD_TIMEOUT", "not-a-duration")
	v.Set("PORTAL_USER_ID", "  ")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, StoreDriverRedis, cfg.Store.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Portal.MutationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Portal.ScreenLoadTimeout)
	assert.Equal(t, "current_user", cfg.Portal.UserID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestFromViperRejectsUnknownDriver(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORE_DRIVER", "firestore")

	_, err := fromViper(v)
	require.Error(t, err)
}
