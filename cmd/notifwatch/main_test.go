package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/model"
)

func TestSaveEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifsync", "config.yaml")
	cfg := model.DefaultAppConfig()
	cfg.SubscriberID = "dave"
	cfg.Backend.Kind = model.BackendMock
	cfg.Poll.Interval = 5 * time.Second

	var out bytes.Buffer
	require.NoError(t, saveEffectiveConfig(&out, path, cfg))
	assert.Contains(t, out.String(), path)

	got, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dave", got.SubscriberID)
	assert.Equal(t, model.BackendMock, got.Backend.Kind)
	assert.Equal(t, 5*time.Second, got.Poll.Interval)
}

func TestSaveEffectiveConfig_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := model.DefaultAppConfig()
	cfg.SubscriberID = ""

	err := saveEffectiveConfig(&bytes.Buffer{}, path, cfg)
	assert.ErrorContains(t, err, "subscriber_id")
	assert.NoFileExists(t, path)
}
