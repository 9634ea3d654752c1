package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hay-kot/agenda/internal/app"
	"github.com/hay-kot/agenda/internal/core/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	once   sync.Once
	client *app.Client
	err    error
}

// Client builds and starts the application core on first use. Commands that
// only need configuration never open the remote store.
func (f *Flags) Client(ctx context.Context) (*app.Client, error) {
	f.once.Do(func() {
		if f.Config == nil {
			f.err = fmt.Errorf("configuration not loaded")
			return
		}

		c, err := app.New(ctx, f.Config, log.Logger)
		if err != nil {
			f.err = fmt.Errorf("start client: %w", err)
			return
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close(ctx)
			f.err = fmt.Errorf("start client: %w", err)
			return
		}
		f.client = c
	})
	return f.client, f.err
}

// Close releases the client if one was started.
func (f *Flags) Close(ctx context.Context) error {
	if f.client == nil {
		return nil
	}
	return f.client.Close(ctx)
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "agenda", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "agenda")
}
