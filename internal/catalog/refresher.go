package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/schedule"
)

// ErrNoSources is returned by Refresh when the patterns match no files.
var ErrNoSources = errors.New("no catalog sources matched")

// Refresher reloads the catalog from its sources.
type Refresher struct {
	catalog  *Catalog
	patterns []string
	window   Window
	log      zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRefresher creates a refresher that loads patterns into c.
func NewRefresher(c *Catalog, patterns []string, window Window, log zerolog.Logger) *Refresher {
	return &Refresher{
		catalog:  c,
		patterns: patterns,
		window:   window,
		log:      log.With().Str("component", "catalog").Logger(),
	}
}

// Refresh loads every source and replaces the catalog. A source that fails
// to load is skipped; the catalog is left untouched only when nothing matched.
func (r *Refresher) Refresh(ctx context.Context) error {
	files, err := Sources(r.patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNoSources
	}

	var sessions []schedule.Session
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		loaded, err := r.load(file)
		if err != nil {
			r.log.Warn().Err(err).Str("file", file).Msg("skipping catalog source")
			continue
		}
		sessions = append(sessions, loaded...)
	}

	r.catalog.Replace(sessions)
	r.log.Debug().Int("sources", len(files)).Int("sessions", r.catalog.Len()).Msg("catalog refreshed")
	return nil
}

func (r *Refresher) load(file string) ([]schedule.Session, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(file)) {
	case ".ics", ".ical":
		return LoadICS(f, r.window, r.log)
	case ".json":
		return LoadJSON(f, r.log)
	default:
		return nil, fmt.Errorf("unsupported source type %q", filepath.Ext(file))
	}
}

// Start schedules Refresh with a cron spec such as "@every 15m". Calling
// Start again replaces the previous schedule.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := r.Refresh(ctx); err != nil {
			r.log.Error().Err(err).Msg("scheduled catalog refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", spec, err)
	}

	r.mu.Lock()
	prev := r.cron
	r.cron = c
	r.mu.Unlock()

	if prev != nil {
		<-prev.Stop().Done()
	}
	c.Start()
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
