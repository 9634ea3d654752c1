package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/agenda/internal/core/config"
	"github.com/hay-kot/agenda/internal/printer"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "agenda config validate [options]",
				Description: "Validates the configuration file, checking the backend settings, catalog patterns, refresh schedule and conference window.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// validation is the outcome of checking the loaded configuration.
type validation struct {
	Valid    bool                       `json:"valid"`
	Backend  string                     `json:"backend"`
	Store    string                     `json:"store"`
	Sources  []string                   `json:"sources"`
	Errors   []fieldError               `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

type fieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func validateConfig(cfg *config.Config, configPath string) validation {
	v := validation{
		Backend:  cfg.Backend,
		Store:    cfg.StoreLocation(),
		Sources:  cfg.SourcePatterns(),
		Warnings: cfg.Warnings(),
	}

	err := cfg.ValidateDeep(configPath)
	v.Valid = err == nil
	if err == nil {
		return v
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		fieldErrs = criterio.FieldErrors{{Err: err}}
	}
	for _, fe := range fieldErrs {
		v.Errors = append(v.Errors, fieldError{Field: fe.Field, Message: fe.Err.Error()})
	}
	return v
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	v := validateConfig(cmd.flags.Config, cmd.flags.ConfigPath)

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return err
		}
	} else {
		printValidation(printer.Ctx(ctx), v)
	}

	if !v.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func printValidation(p *printer.Printer, v validation) {
	p.Section("Backend")
	p.Printf("  %s at %s", v.Backend, v.Store)
	p.Printf("")

	p.Section("Catalog sources")
	for _, s := range v.Sources {
		p.Printf("  %s %s", printer.Dot, s)
	}
	p.Printf("")

	if len(v.Errors) > 0 {
		p.Section("Errors")
		for _, fe := range v.Errors {
			label := fe.Field
			if label == "" {
				label = "config"
			}
			p.FailItem(label, fe.Message)
		}
		p.Printf("")
	}

	if len(v.Warnings) > 0 {
		p.Section("Warnings")
		for _, w := range v.Warnings {
			label := w.Category
			if w.Item != "" {
				label += " (" + w.Item + ")"
			}
			p.WarnItem(label, w.Message)
		}
		p.Printf("")
	}

	switch {
	case !v.Valid:
		p.Errorf("%d error(s), %d warning(s)", len(v.Errors), len(v.Warnings))
	case len(v.Warnings) > 0:
		p.Successf("Configuration is valid for the %s backend (%d warning(s))", v.Backend, len(v.Warnings))
	default:
		p.Successf("Configuration is valid for the %s backend", v.Backend)
	}
}
