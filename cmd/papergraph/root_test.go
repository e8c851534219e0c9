package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csheth/papergraph/internal/chat"
	"github.com/csheth/papergraph/internal/localstore"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHistoryExportPrintsCachedTranscript(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.Open(localstore.Config{Backend: localstore.BackendFile, Dir: dir})
	require.NoError(t, err)
	raw, err := json.Marshal([]chat.Message{
		{Role: chat.RoleUser, Content: "Add the BERT paper"},
		{Role: chat.RoleAssistant, Content: "Added BERT."},
	})
	require.NoError(t, err)
	require.NoError(t, store.Put(chat.StorageKey, raw))
	require.NoError(t, store.Close())

	out, err := execute(t, "history", "export", "--cache-dir", dir)
	require.NoError(t, err)

	var messages []chat.Message
	require.NoError(t, json.Unmarshal([]byte(out), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "Added BERT.", messages[1].Content)
}

func TestHistoryExportWithoutCacheIsEmptyList(t *testing.T) {
	out, err := execute(t, "history", "export", "--cache-dir", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestHistoryExportToFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "history.json")
	_, err := execute(t, "history", "export", "--cache-dir", dir, "-o", target)
	require.NoError(t, err)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(written)))
}

func TestInvalidConfigIsRejected(t *testing.T) {
	_, err := execute(t, "history", "export", "--cache-dir", t.TempDir(), "--cache-backend", "sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "papergraph "), out)
}
