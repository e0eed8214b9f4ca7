package testsupport

import (
	"context"
	"testing"

	"vidsentry/internal/config"
	"vidsentry/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustInsertVideo claims filename in the store.
func MustInsertVideo(t testing.TB, st *store.Store, filename string) *store.Video {
	t.Helper()

	video, err := st.InsertVideo(context.Background(), filename)
	if err != nil {
		t.Fatalf("store.InsertVideo: %v", err)
	}
	return video
}
