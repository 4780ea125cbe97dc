package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.stackforge.dev/ws/internal/state/storage"
)

type fakeBackend struct {
	docs map[string]any
}

func newFakeBackend() *fakeBackend { return &fakeBackend{docs: map[string]any{}} }

func (f *fakeBackend) Keys(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeBackend) Get(_ context.Context, key string, v any) error {
	doc, ok := f.docs[key]
	if !ok {
		return storage.ErrNotExist
	}
	cfg := doc.(Settings)
	*(v.(*Settings)) = cfg
	return nil
}

func (f *fakeBackend) Update(_ context.Context, req storage.UpdateRequest) error {
	for _, s := range req.Sets {
		f.docs[s.Key] = s.Value.(Settings)
	}
	return nil
}

func (f *fakeBackend) Clear(context.Context, string) error {
	f.docs = map[string]any{}
	return nil
}

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	store := NewStore(newFakeBackend())
	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), cfg)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	store := NewStore(newFakeBackend())
	want := Settings{HeroStack: "main-feature", RebaseNoopPolicy: KeepNoops, ContextLines: 5}
	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
