package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observerStub struct {
	ops []string
}

func (o *observerStub) ObserveStoreOp(op, collection string, duration time.Duration, err error) {
	o.ops = append(o.ops, op+":"+collection)
}

func TestInstrumentRecordsEveryCall(t *testing.T) {
	obs := &observerStub{}
	s := Instrument(NewMemoryStore(), obs, nil)

	require.NoError(t, s.WriteField(context.Background(), CollectionEvents, "e1", "name", "Career Fair"))
	_, err := s.FetchAll(context.Background(), CollectionEvents)
	require.NoError(t, err)

	assert.Equal(t, []string{"write_field:events", "fetch_all:events"}, obs.ops)
	closer, ok := s.(Closer)
	require.True(t, ok)
	assert.NoError(t, closer.Close())
}
