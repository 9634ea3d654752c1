package doctor

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/config"
	"github.com/hay-kot/agenda/internal/store/mongo"
)

const connectTimeout = 5 * time.Second

// StoreCheck verifies the remote backend is reachable.
type StoreCheck struct {
	config *config.Config
}

// NewStoreCheck creates a new store check.
func NewStoreCheck(cfg *config.Config) *StoreCheck {
	return &StoreCheck{config: cfg}
}

func (c *StoreCheck) Name() string {
	return "Store"
}

func (c *StoreCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.add(fail("Config loaded", "configuration not loaded"))
		return result
	}

	switch c.config.Backend {
	case config.BackendMongo:
		result.add(c.checkMongo(ctx))
	default:
		result.add(c.checkDir())
	}

	return result
}

func (c *StoreCheck) checkDir() CheckItem {
	const label = "Store directory"
	dir := c.config.StoreDir()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(label, err.Error())
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fail(label, "not writable: "+err.Error())
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	return pass(label, dir)
}

func (c *StoreCheck) checkMongo(ctx context.Context) CheckItem {
	const label = "MongoDB"

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	store, err := mongo.Connect(ctx, c.config.Mongo.URI, c.config.Mongo.Database, zerolog.Nop())
	if err != nil {
		return fail(label, err.Error())
	}
	_ = store.Close(ctx)

	return pass(label, c.config.StoreLocation())
}
