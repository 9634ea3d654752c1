package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/catalog"
	"github.com/hay-kot/agenda/internal/core/config"
)

// CatalogCheck loads the configured catalog sources.
type CatalogCheck struct {
	config *config.Config
}

// NewCatalogCheck creates a new catalog check.
func NewCatalogCheck(cfg *config.Config) *CatalogCheck {
	return &CatalogCheck{config: cfg}
}

func (c *CatalogCheck) Name() string {
	return "Catalog"
}

func (c *CatalogCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.add(fail("Config loaded", "configuration not loaded"))
		return result
	}

	files, err := catalog.Sources(c.config.SourcePatterns())
	if err != nil {
		result.add(fail("Sources", err.Error()))
		return result
	}

	if len(files) == 0 {
		result.add(warn("Sources", "no files match catalog.sources"))
		return result
	}

	result.add(pass("Sources", fmt.Sprintf("%d file(s)", len(files))))

	cat := catalog.New()
	r := catalog.NewRefresher(cat, c.config.SourcePatterns(), catalog.Window(c.config.Catalog.Window), zerolog.Nop())
	if err := r.Refresh(ctx); err != nil && !errors.Is(err, catalog.ErrNoSources) {
		result.add(fail("Sessions", err.Error()))
		return result
	}

	if cat.Len() == 0 {
		result.add(warn("Sessions", "sources contain no valid sessions"))
	} else {
		result.add(pass("Sessions", fmt.Sprintf("%d session(s)", cat.Len())))
	}

	return result
}
