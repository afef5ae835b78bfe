package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set(ctx, "k", json.RawMessage(`{"a":1}`)))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	require.NoError(t, s.Remove(ctx, "k"))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	value := json.RawMessage(`"abc"`)
	require.NoError(t, s.Set(ctx, "k", value))
	value[1] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(got))
}

type slowStore struct{}

func (slowStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, &OpError{Op: "get", Key: key, Err: ctx.Err()}
}

func (slowStore) Set(ctx context.Context, key string, _ json.RawMessage) error {
	<-ctx.Done()
	return &OpError{Op: "set", Key: key, Err: ctx.Err()}
}

func (slowStore) Remove(ctx context.Context, key string) error {
	<-ctx.Done()
	return &OpError{Op: "remove", Key: key, Err: ctx.Err()}
}

func TestWithTimeoutBoundsCalls(t *testing.T) {
	s := WithTimeout(slowStore{}, 10*time.Millisecond)

	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, s.Set(context.Background(), "k", nil), context.DeadlineExceeded)
	assert.ErrorIs(t, s.Remove(context.Background(), "k"), context.DeadlineExceeded)
}

func TestWithTimeoutZeroIsPassThrough(t *testing.T) {
	inner := NewMemoryStore()
	assert.Same(t, inner, WithTimeout(inner, 0))
}
