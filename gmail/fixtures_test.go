package gmail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func TestFixtureSource(t *testing.T) {
	src, err := NewFixtureSource("testdata")
	require.NoError(t, err)
	ctx := context.Background()

	ids, err := src.ListThreadIDs(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-100", "t-200"}, ids)

	thread, err := src.Thread(ctx, "t-100")
	require.NoError(t, err)
	assert.Len(t, thread.Messages, 2)

	_, err = src.Thread(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := src.Message(ctx, "m-301")
	require.NoError(t, err)
	assert.Equal(t, "t-300", m.ThreadId)

	m, err = src.Message(ctx, "m-102")
	require.NoError(t, err)
	assert.Equal(t, "t-100", m.ThreadId)

	_, err = src.Attachment(ctx, "m-101", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFixtureSourceFetchPrefersThreads(t *testing.T) {
	src, err := NewFixtureSource("testdata")
	require.NoError(t, err)

	out := make(chan *gmail.Message, 10)
	require.NoError(t, src.Fetch(context.Background(), out))
	close(out)

	var ids []string
	for m := range out {
		ids = append(ids, m.Id)
	}
	assert.Equal(t, []string{"m-101", "m-102", "m-201"}, ids)

	require.NoError(t, src.MarkProcessed(context.Background(), ids))
	assert.Equal(t, ids, src.Processed())
}

func TestFixtureSourceMessagesOnly(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("testdata", "messages.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "messages.json"), data, 0o644))

	src, err := NewFixtureSource(dir)
	require.NoError(t, err)

	out := make(chan *gmail.Message, 10)
	require.NoError(t, src.Fetch(context.Background(), out))
	close(out)
	require.Len(t, out, 1)
	assert.Equal(t, "m-301", (<-out).Id)
}

func TestFixtureSourceEmptyDir(t *testing.T) {
	_, err := NewFixtureSource(t.TempDir())
	assert.Error(t, err)
}
