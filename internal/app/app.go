// Package app wires the agenda components together. Everything is built
// explicitly by New and released by Close.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/catalog"
	"github.com/hay-kot/agenda/internal/clash"
	"github.com/hay-kot/agenda/internal/core/bookmark"
	"github.com/hay-kot/agenda/internal/core/config"
	"github.com/hay-kot/agenda/internal/core/identity"
	"github.com/hay-kot/agenda/internal/core/notify"
	"github.com/hay-kot/agenda/internal/core/remote"
	"github.com/hay-kot/agenda/internal/core/reservation"
	"github.com/hay-kot/agenda/internal/lifecycle"
	"github.com/hay-kot/agenda/internal/reserve"
	"github.com/hay-kot/agenda/internal/store/jsonfile"
	"github.com/hay-kot/agenda/internal/store/mongo"
	"github.com/hay-kot/agenda/internal/syncstore"
)

// Client is the assembled application core.
type Client struct {
	Config       *config.Config
	Catalog      *catalog.Catalog
	Refresher    *catalog.Refresher
	Identity     *identity.Local
	Hub          *notify.Hub
	Remote       remote.Store
	Reservations *syncstore.Reservations
	Bookmarks    *syncstore.Bookmarks
	Detector     *clash.Detector
	Reserve      *reserve.Service
	Lifecycle    *lifecycle.Adapter

	log     zerolog.Logger
	closers []func(context.Context) error
}

// New builds a Client from cfg. ctx bounds the remote connection and every
// listener the client starts.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Client, error) {
	c := &Client{
		Config:  cfg,
		Catalog: catalog.New(),
		Hub:     notify.NewHub(),
		log:     log.With().Str("component", "app").Logger(),
	}

	store, err := c.openRemote(ctx, log)
	if err != nil {
		return nil, err
	}
	c.Remote = store

	c.Identity, err = identity.NewLocal(cfg.IdentityFile())
	if err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("load identity: %w", err)
	}

	c.Refresher = catalog.NewRefresher(c.Catalog, cfg.SourcePatterns(), catalog.Window(cfg.Catalog.Window), log)

	c.Reservations = syncstore.NewReservations(store, c.Identity, c.Hub,
		log.With().Str("component", "reservations").Logger())
	c.Bookmarks = syncstore.NewBookmarks(store, c.Identity, c.Hub,
		log.With().Str("component", "bookmarks").Logger())

	c.Reserve = reserve.New(c.Catalog, c.Reservations, c.Identity, log, reserve.WithCutoff(cfg.Reservations.Cutoff))
	c.Detector = c.Reserve.Detector()

	c.Lifecycle = lifecycle.New(ctx, c.Identity,
		log.With().Str("component", "lifecycle").Logger(),
		c.Reservations, c.Bookmarks)

	return c, nil
}

func (c *Client) openRemote(ctx context.Context, log zerolog.Logger) (remote.Store, error) {
	switch c.Config.Backend {
	case config.BackendMongo:
		store, err := mongo.Connect(ctx, c.Config.Mongo.URI, c.Config.Mongo.Database, log)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	default:
		return jsonfile.New(c.Config.StoreDir(), c.Config.PollInterval, log), nil
	}
}

// Start loads the catalog, subscribes both sync stores for the current user
// and schedules catalog refreshes when configured.
func (c *Client) Start(ctx context.Context) error {
	if err := c.Refresher.Refresh(ctx); err != nil {
		if !errors.Is(err, catalog.ErrNoSources) {
			return fmt.Errorf("load catalog: %w", err)
		}
		c.log.Warn().Strs("patterns", c.Config.SourcePatterns()).Msg("no catalog sources found")
	}

	c.Reservations.Subscribe(ctx, func(list []reservation.ReservedSession) {
		c.log.Debug().Int("count", len(list)).Msg("reservations updated")
	})
	c.Bookmarks.Subscribe(ctx, func(list []bookmark.BookmarkedSession) {
		c.log.Debug().Int("count", len(list)).Msg("bookmarks updated")
	})

	if spec := c.Config.Catalog.Refresh; spec != "" {
		if err := c.Refresher.Start(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// Close releases listeners, the refresh schedule and the remote connection.
func (c *Client) Close(ctx context.Context) error {
	if c.Lifecycle != nil {
		c.Lifecycle.Close()
	}
	if c.Reservations != nil {
		c.Reservations.Unsubscribe()
	}
	if c.Bookmarks != nil {
		c.Bookmarks.Unsubscribe()
	}
	if c.Refresher != nil {
		c.Refresher.Stop()
	}

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
