package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/agenda/internal/core/validate"
	"github.com/hay-kot/agenda/internal/printer"
)

type LoginCmd struct {
	flags *Flags
	email string
}

// NewLoginCmd creates a new login command
func NewLoginCmd(flags *Flags) *LoginCmd {
	return &LoginCmd{flags: flags}
}

// Register adds the login command to the application
func (cmd *LoginCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "login",
		Usage:     "Sign in",
		UsageText: "agenda login [--email <address>]",
		Description: `Signs in with an email address, or anonymously when no address is given.

The same address maps to the same account on every device, so reservations
and bookmarks follow you.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "account email address",
				Sources:     cli.EnvVars("AGENDA_EMAIL"),
				Destination: &cmd.email,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LoginCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.email != "" {
		if err := validate.Email(cmd.email); err != nil {
			return err
		}
	}

	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)

	if cmd.email == "" {
		u, err := client.Identity.SignInAnonymously()
		if err != nil {
			return err
		}
		p.Successf("Signed in anonymously as %s", u.ID)
		return nil
	}

	u, err := client.Identity.SignIn(cmd.email)
	if err != nil {
		return err
	}
	p.Successf("Signed in as %s", u.Email)
	p.Infof("%d reservation(s), %d bookmark(s)", len(client.Reservations.Reservations()), len(client.Bookmarks.Bookmarks()))
	return nil
}

type LogoutCmd struct {
	flags *Flags
}

// NewLogoutCmd creates a new logout command
func NewLogoutCmd(flags *Flags) *LogoutCmd {
	return &LogoutCmd{flags: flags}
}

// Register adds the logout command to the application
func (cmd *LogoutCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "logout",
		Usage:     "Sign out",
		UsageText: "agenda logout",
		Action:    cmd.run,
	})

	return app
}

func (cmd *LogoutCmd) run(ctx context.Context, c *cli.Command) error {
	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	if err := client.Identity.SignOut(); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Signed out")
	return nil
}

type WhoamiCmd struct {
	flags *Flags
}

// NewWhoamiCmd creates a new whoami command
func NewWhoamiCmd(flags *Flags) *WhoamiCmd {
	return &WhoamiCmd{flags: flags}
}

// Register adds the whoami command to the application
func (cmd *WhoamiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "whoami",
		Usage:     "Show the signed-in user",
		UsageText: "agenda whoami",
		Action:    cmd.run,
	})

	return app
}

func (cmd *WhoamiCmd) run(ctx context.Context, c *cli.Command) error {
	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)

	u := client.Identity.CurrentUser()
	switch {
	case u == nil:
		p.Infof("Not signed in")
	case u.Anonymous:
		p.Printf("anonymous (%s)", u.ID)
	default:
		p.Printf("%s (%s)", u.Email, u.ID)
	}
	return nil
}
