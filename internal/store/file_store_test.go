package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFileStore_ReadsLegacyArray(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "training_data.json")
	legacy := `[
  {
    "originalLocator": "input[name=\"username\"]",
    "healedLocator": "#user-name"
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "#user-name", got[0].HealedLocator)
	assert.True(t, got[0].RecordedAt.IsZero())

	// First append converts the file to JSON Lines and keeps the old record first.
	require.NoError(t, s.Append(ctx, rec("#a", "#b", 1)))
	got, err = s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, `input[name="username"]`, got[0].OriginalLocator)
	assert.Equal(t, "#a", got[1].OriginalLocator)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, byte('['), data[0])
}

func TestFileStore_IgnoresTornFinalLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	content := `{"originalLocator":"#a","healedLocator":"#b","recordedAt":"2024-05-01T12:00:00Z"}` + "\n" +
		`{"originalLocator":"#c","heal`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "#a", got[0].OriginalLocator)
}

func TestFileStore_AppendAfterTornWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, rec("#a", "#b", 1)))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"originalLocator":"#x","heal`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Append(ctx, rec("#c", "#d", 2)))

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "#a", got[0].OriginalLocator)
	assert.Equal(t, "#c", got[1].OriginalLocator)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"#x"`)
}

func TestFileStore_RejectsCorruptMiddleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	content := "not json\n" + `{"originalLocator":"#a","healedLocator":"#b"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.LoadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus line 1")
}

func TestFileStore_AppendHonoursCancelledContext(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "corpus.jsonl"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Append(ctx, rec("a", "b", 1)), context.Canceled)
}

func TestFileStore_Follow(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.jsonl")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	// Existing records are not replayed.
	require.NoError(t, s.Append(context.Background(), rec("#old", "#older", 0)))

	ctx, cancel := context.WithCancel(context.Background())
	records, err := s.Follow(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Append(context.Background(), rec("#user", "#healed", 1)))

	select {
	case got := <-records:
		assert.Equal(t, "#user", got.OriginalLocator)
		assert.Equal(t, "#healed", got.HealedLocator)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for followed record")
	}

	cancel()
	for range records {
		// drain until the follower closes the channel
	}
}
