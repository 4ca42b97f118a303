package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"learnhub_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, uploads, policy string) {
	t.Helper()
	body := fmt.Sprintf("server:\n  mode: debug\nstorage:\n  local_path: %s\nprogress:\n  quiz_count_policy: %s\n", uploads, policy)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	uploads := filepath.Join(dir, "uploads")
	writeConfig(t, path, uploads, "distinct")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 1)
	require.NoError(t, WatchConfig(ctx, path, func(cfg *config.Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))

	writeConfig(t, path, uploads, "attempts")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "attempts", cfg.Progress.QuizCountPolicy)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestWatchConfigMissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "config.yaml"), func(*config.Config) {})
	assert.Error(t, err)
}
