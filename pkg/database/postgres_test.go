package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-portal/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "portal", Password: "secret", Name: "portal"})
	assert.Equal(t, "host=db port=5433 user=portal password=secret dbname=portal sslmode=disable", dsn)

	dsn = PostgresDSN(config.DatabaseConfig{Host: "db", Port: 5432, SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}
