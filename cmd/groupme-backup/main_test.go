// ABOUTME: Tests for the groupme-backup command dispatcher and log handlers
// ABOUTME: Runs sync and status end to end against an httptest API and a temp database

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/groupme-backup/internal/config"
)

func init() {
	color.NoColor = true
}

func TestSetupLogger_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"hello"`},
		{"text", `msg=hello`},
		{"color", `INF hello`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := setupLogger(config.LoggingConfig{Level: "info", Format: tt.format}, &buf)
			logger.Info("hello", "k", "v")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestSetupLogger_JSONIsParseable(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.With("run_id", "abc").Info("sync complete", "stored", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["run_id"])
	assert.Equal(t, float64(3), entry["stored"])
}

func TestColorHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "color"}, &buf)

	logger.Info("quiet")
	logger.Debug("quieter")
	logger.Warn("loud")
	logger.Error("louder")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "WRN loud")
	assert.Contains(t, out, "ERR louder")
}

func TestColorHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "color"}, &buf)

	logger.With("run_id", "r1").WithGroup("page").With("n", 2).Debug("fetched", "count", 100)

	line := buf.String()
	assert.Contains(t, line, "DBG fetched")
	assert.Contains(t, line, " run_id=r1")
	assert.Contains(t, line, " page.n=2")
	assert.Contains(t, line, " page.count=100")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestColorHandler_GroupAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "color"}, &buf)

	logger.Info("done", slog.Group("result", "stored", 1, "skipped", 2))

	assert.Contains(t, buf.String(), " result.stored=1 result.skipped=2")
}

func TestRun_Version(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, &buf))
	assert.Equal(t, version+"\n", buf.String())
}

func TestRun_UnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	err := run(context.Background(), []string{"frobnicate"}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: frobnicate")
}

func TestRun_MissingConfig(t *testing.T) {
	t.Setenv(config.ConfigEnvVar, "")
	t.Setenv(config.EnvDatabase, "")
	t.Setenv(config.EnvGroupID, "")
	t.Setenv(config.EnvToken, "")

	err := run(context.Background(), nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRun_SyncThenStatus(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		tokens = append(tokens, q.Get("token"))
		if q.Has("before_id") || q.Has("after_id") {
			w.Write([]byte(`{"response": {"count": 2, "messages": []}}`))
			return
		}
		w.Write([]byte(`{"response": {"count": 2, "messages": [
			{"id": "2", "created_at": 1700000100, "name": "Bob", "sender_id": "20", "sender_type": "user",
			 "source_guid": "g2", "system": false, "text": "hi", "user_id": "20",
			 "attachments": [{"type": "image", "url": "https://i.groupme.com/x.png"}]},
			{"id": "1", "created_at": 1700000000, "name": "Alice", "sender_id": "10", "sender_type": "user",
			 "source_guid": "g1", "system": false, "text": "hello", "user_id": "10", "attachments": []}
		]}}`))
	}))
	defer srv.Close()

	dbPath := filepath.Join(t.TempDir(), "backup", "groupme.db")
	t.Setenv(config.ConfigEnvVar, "")
	t.Setenv(config.EnvDatabase, dbPath)
	t.Setenv(config.EnvDatabaseDriver, "")
	t.Setenv(config.EnvGroupID, "12345")
	t.Setenv(config.EnvToken, "secret-token")
	t.Setenv(config.EnvAPIURL, srv.URL)
	t.Setenv(config.EnvLogLevel, "info")
	t.Setenv(config.EnvLogFormat, "json")

	var syncOut bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"sync"}, &syncOut))
	assert.Contains(t, syncOut.String(), `"msg":"sync complete"`)
	assert.Contains(t, syncOut.String(), `"run_id":`)
	assert.NotContains(t, syncOut.String(), "secret-token")
	require.Len(t, tokens, 2)
	assert.Equal(t, "secret-token", tokens[0])

	var statusOut bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"status"}, &statusOut))
	out := statusOut.String()
	assert.Contains(t, out, "Schema:    v2")
	assert.Contains(t, out, "Messages:  2")
	assert.Contains(t, out, "(ids 1 .. 2)")
	assert.Regexp(t, `images\s+1`, out)
}

func TestRun_SyncAPIErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Setenv(config.ConfigEnvVar, "")
	t.Setenv(config.EnvDatabase, filepath.Join(t.TempDir(), "groupme.db"))
	t.Setenv(config.EnvDatabaseDriver, "")
	t.Setenv(config.EnvGroupID, "12345")
	t.Setenv(config.EnvToken, "bad")
	t.Setenv(config.EnvAPIURL, srv.URL)
	t.Setenv(config.EnvLogFormat, "text")

	err := run(context.Background(), []string{"sync"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

// localOnlyEnv sets DATABASE and clears every API setting
func localOnlyEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "groupme.db")
	t.Setenv(config.ConfigEnvVar, "")
	t.Setenv(config.EnvDatabase, dbPath)
	t.Setenv(config.EnvDatabaseDriver, "")
	t.Setenv(config.EnvGroupID, "")
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvAPIRate, "")
	t.Setenv(config.EnvLogLevel, "info")
	t.Setenv(config.EnvLogFormat, "text")
	return dbPath
}

func TestRun_MigrateNeedsOnlyDatabase(t *testing.T) {
	localOnlyEnv(t)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"migrate"}, &buf))
	assert.Contains(t, buf.String(), "schema is up to date")
	assert.Contains(t, buf.String(), "version=2")
}

func TestRun_StatusNeedsOnlyDatabase(t *testing.T) {
	dbPath := localOnlyEnv(t)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"status"}, &buf))
	assert.Contains(t, buf.String(), "Database:  "+dbPath)
	assert.Contains(t, buf.String(), "Messages:  none")
}

func TestRun_SyncStillNeedsAPISettings(t *testing.T) {
	localOnlyEnv(t)

	err := run(context.Background(), []string{"sync"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group id is required")
}
