package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{"sessions": [
  {"id": "keynote", "title": "Keynote", "start": "2024-05-14T09:00:00Z", "end": "2024-05-14T10:00:00Z"}
]}`

func TestRefresher_Refresh(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "day1.json"), sampleJSON)
	writeFile(t, filepath.Join(dir, "workshops.ics"), calendar([]string{
		"UID:workshop",
		"DTSTAMP:20240501T000000Z",
		"DTSTART:20240515T130000Z",
		"DTEND:20240515T150000Z",
		"SUMMARY:Workshop",
	}))
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	c := New()
	r := NewRefresher(c, []string{filepath.Join(dir, "*")}, conference, zerolog.Nop())

	require.NoError(t, r.Refresh(context.Background()))

	assert.Equal(t, 2, c.Len())
	_, ok := c.SessionByID("keynote")
	assert.True(t, ok)
	_, ok = c.SessionByID("workshop")
	assert.True(t, ok)
}

func TestRefresher_NoSourcesKeepsCatalog(t *testing.T) {
	c := New(session("keynote", "09:00", "10:00"))
	r := NewRefresher(c, []string{filepath.Join(t.TempDir(), "*.json")}, Window{}, zerolog.Nop())

	err := r.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoSources)
	assert.Equal(t, 1, c.Len())
}

func TestRefresher_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "day1.json"), sampleJSON)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New()
	r := NewRefresher(c, []string{filepath.Join(dir, "*.json")}, Window{}, zerolog.Nop())

	assert.ErrorIs(t, r.Refresh(ctx), context.Canceled)
	assert.Equal(t, 0, c.Len())
}

func TestRefresher_StartStop(t *testing.T) {
	r := NewRefresher(New(), nil, Window{}, zerolog.Nop())

	require.Error(t, r.Start(context.Background(), "not a schedule"))

	require.NoError(t, r.Start(context.Background(), "@every 1h"))
	require.NoError(t, r.Start(context.Background(), "@every 30m"))
	r.Stop()
	r.Stop()
}
