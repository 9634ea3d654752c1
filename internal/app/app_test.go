package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/agenda/internal/core/config"
	"github.com/hay-kot/agenda/internal/core/notify"
	"github.com/hay-kot/agenda/internal/core/reservation"
	"github.com/hay-kot/agenda/internal/lifecycle"
)

const catalogJSON = `{"sessions": [
  {"id": "keynote", "title": "Keynote", "start": "2099-05-14T09:00:00Z", "end": "2099-05-14T10:00:00Z"},
  {"id": "panel", "title": "Panel", "start": "2099-05-14T09:30:00Z", "end": "2099-05-14T10:30:00Z"}
]}`

func newTestClient(t *testing.T) (*Client, *config.Config) {
	t.Helper()
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "catalog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "catalog", "day1.json"), []byte(catalogJSON), 0o644))

	cfg, err := config.Load("", dataDir)
	require.NoError(t, err)
	cfg.PollInterval = 10 * time.Millisecond

	c, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	require.NoError(t, c.Start(context.Background()))
	return c, cfg
}

func TestClient_StartLoadsCatalog(t *testing.T) {
	c, _ := newTestClient(t)

	assert.Equal(t, 2, c.Catalog.Len())
	assert.Equal(t, lifecycle.SignedOut, c.Lifecycle.State())
	assert.False(t, c.Reservations.Subscribed())
}

func TestClient_ReserveFlow(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	changed := make(chan struct{}, 16)
	h := c.Hub.Subscribe(notify.TopicReservations, func(notify.Topic) { changed <- struct{}{} })
	defer h.Dispose()

	_, err := c.Identity.SignIn("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.SignedIn, c.Lifecycle.State())
	assert.True(t, c.Reservations.Subscribed())

	assert.Equal(t, reservation.ReserveSucceeded, c.Reserve.Reserve(ctx, "keynote"))

	require.Eventually(t, func() bool {
		return c.Reservations.Status("keynote") == reservation.StatusReserved
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, reservation.ReserveDeniedClash, c.Reserve.Reserve(ctx, "panel"))

	require.NoError(t, c.Identity.SignOut())
	assert.Equal(t, reservation.StatusNone, c.Reservations.Status("keynote"))
	assert.NotEmpty(t, changed)
}

func TestClient_StateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	c, cfg := newTestClient(t)

	_, err := c.Identity.SignIn("ada@example.com")
	require.NoError(t, err)
	_, err = c.Bookmarks.Toggle(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	again, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = again.Close(ctx) }()
	require.NoError(t, again.Start(ctx))

	assert.Equal(t, lifecycle.SignedIn, again.Lifecycle.State())
	assert.True(t, again.Bookmarks.IsBookmarked("panel"))
}

func TestClient_MissingCatalogIsNotFatal(t *testing.T) {
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)

	c, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 0, c.Catalog.Len())
}
