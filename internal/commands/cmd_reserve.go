package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/agenda/internal/core/reservation"
	"github.com/hay-kot/agenda/internal/core/validate"
	"github.com/hay-kot/agenda/internal/printer"
)

// report prints the outcome and turns a denial into a non-zero exit.
func report(ctx context.Context, r reservation.Result, sessionID string) error {
	printer.Ctx(ctx).Result(r, sessionID)
	if r.Denied() {
		return cli.Exit("", 1)
	}
	return nil
}

// requireArgs checks the command received exactly n session ids.
func requireArgs(c *cli.Command, n int, usage string) error {
	if c.Args().Len() != n {
		return fmt.Errorf("usage: %s", usage)
	}
	for _, id := range c.Args().Slice() {
		if err := validate.SessionID(id); err != nil {
			return err
		}
	}
	return nil
}

type ReserveCmd struct {
	flags *Flags
}

// NewReserveCmd creates a new reserve command
func NewReserveCmd(flags *Flags) *ReserveCmd {
	return &ReserveCmd{flags: flags}
}

// Register adds the reserve command to the application
func (cmd *ReserveCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "reserve",
		Usage:     "Reserve a seat in a session",
		UsageText: "agenda reserve <session-id>",
		Description: `Reserves a seat for the signed-in user.

The reservation is refused when the session starts within the cutoff window or
overlaps a session you already hold.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ReserveCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 1, "agenda reserve <session-id>"); err != nil {
		return err
	}

	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	id := c.Args().First()
	return report(ctx, client.Reserve.Reserve(ctx, id), id)
}

type SwapCmd struct {
	flags *Flags
}

// NewSwapCmd creates a new swap command
func NewSwapCmd(flags *Flags) *SwapCmd {
	return &SwapCmd{flags: flags}
}

// Register adds the swap command to the application
func (cmd *SwapCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "swap",
		Usage:       "Exchange one reservation for another",
		UsageText:   "agenda swap <from-id> <to-id>",
		Description: "Releases the first session and reserves the second. Overlap with the released session is allowed.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *SwapCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 2, "agenda swap <from-id> <to-id>"); err != nil {
		return err
	}

	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	from, to := c.Args().Get(0), c.Args().Get(1)
	return report(ctx, client.Reserve.Swap(ctx, from, to), from+" -> "+to)
}

type CancelCmd struct {
	flags *Flags
}

// NewCancelCmd creates a new cancel command
func NewCancelCmd(flags *Flags) *CancelCmd {
	return &CancelCmd{flags: flags}
}

// Register adds the cancel command to the application
func (cmd *CancelCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "cancel",
		Usage:     "Release a reservation",
		UsageText: "agenda cancel <session-id>",
		Action:    cmd.run,
	})

	return app
}

func (cmd *CancelCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 1, "agenda cancel <session-id>"); err != nil {
		return err
	}

	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	id := c.Args().First()
	return report(ctx, client.Reserve.Cancel(ctx, id), id)
}

type ClashesCmd struct {
	flags *Flags
}

// NewClashesCmd creates a new clashes command
func NewClashesCmd(flags *Flags) *ClashesCmd {
	return &ClashesCmd{flags: flags}
}

// Register adds the clashes command to the application
func (cmd *ClashesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "clashes",
		Usage:       "List reservations that overlap a session",
		UsageText:   "agenda clashes <session-id>",
		Description: "Shows which of your reserved sessions overlap the given session in time.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *ClashesCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 1, "agenda clashes <session-id>"); err != nil {
		return err
	}

	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	id := c.Args().First()
	session, ok := client.Catalog.SessionByID(id)
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}

	p := printer.Ctx(ctx)

	clashes := client.Detector.Conflicts(session, session.ID)
	if len(clashes) == 0 {
		p.Successf("No clashes for %s", id)
		return nil
	}

	rows := make([][]string, 0, len(clashes))
	for _, s := range clashes {
		rows = append(rows, sessionRow(client, s))
	}
	p.Warnf("%d reservation(s) overlap %s", len(clashes), id)
	printer.New(c.Root().Writer).Table([]string{"", "ID", "START", "END", "ROOM", "TITLE"}, rows)
	return nil
}
