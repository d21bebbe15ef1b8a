package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/arena/assets"
	"github.com/robalobadob/arena/internal/store"
)

func TestGetDuration(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "90s")
	assert.Equal(t, 90*time.Second, getDuration("SWEEP_INTERVAL", time.Minute))

	t.Setenv("SWEEP_INTERVAL", "soon")
	assert.Equal(t, time.Minute, getDuration("SWEEP_INTERVAL", time.Minute))

	t.Setenv("SWEEP_INTERVAL", "")
	assert.Equal(t, time.Minute, getDuration("SWEEP_INTERVAL", time.Minute))
}

func TestOpenDBCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.db")
	db, err := openDB(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, store.Migrate(db, assets.Migrations()))
	assert.FileExists(t, path)
}
