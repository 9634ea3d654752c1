package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/agenda/internal/printer"
)

type BookmarkCmd struct {
	flags *Flags
}

// NewBookmarkCmd creates a new bookmark command
func NewBookmarkCmd(flags *Flags) *BookmarkCmd {
	return &BookmarkCmd{flags: flags}
}

// Register adds the bookmark command to the application
func (cmd *BookmarkCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "bookmark",
		Usage:       "Toggle the bookmark on a session",
		UsageText:   "agenda bookmark <session-id>",
		Description: "Bookmarks the session, or removes the bookmark if it is already set.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *BookmarkCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 1, "agenda bookmark <session-id>"); err != nil {
		return err
	}

	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if _, ok := client.Catalog.SessionByID(id); !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	if client.Identity.CurrentUser() == nil {
		return fmt.Errorf("not signed in, run 'agenda login' first")
	}

	on, err := client.Bookmarks.Toggle(ctx, id)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	if on {
		p.Successf("Bookmarked %s", id)
	} else {
		p.Infof("Removed bookmark from %s", id)
	}
	return nil
}

type BookmarksCmd struct {
	flags *Flags
}

// NewBookmarksCmd creates a new bookmarks command
func NewBookmarksCmd(flags *Flags) *BookmarksCmd {
	return &BookmarksCmd{flags: flags}
}

// Register adds the bookmarks command to the application
func (cmd *BookmarksCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "bookmarks",
		Usage:     "List bookmarked sessions",
		UsageText: "agenda bookmarks",
		Action:    cmd.run,
	})

	return app
}

func (cmd *BookmarksCmd) run(ctx context.Context, c *cli.Command) error {
	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	bookmarks := client.Bookmarks.Bookmarks()
	if len(bookmarks) == 0 {
		printer.Ctx(ctx).Infof("No bookmarks")
		return nil
	}

	rows := make([][]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		s, ok := client.Catalog.SessionByID(b.SessionID)
		if !ok {
			rows = append(rows, []string{"", b.SessionID, "", "", "", "(not in catalog)"})
			continue
		}
		rows = append(rows, sessionRow(client, s))
	}
	printer.New(c.Root().Writer).Table([]string{"", "ID", "START", "END", "ROOM", "TITLE"}, rows)
	return nil
}

type ReservationsCmd struct {
	flags *Flags
}

// NewReservationsCmd creates a new reservations command
func NewReservationsCmd(flags *Flags) *ReservationsCmd {
	return &ReservationsCmd{flags: flags}
}

// Register adds the reservations command to the application
func (cmd *ReservationsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "reservations",
		Usage:     "List your reservations",
		UsageText: "agenda reservations",
		Action:    cmd.run,
	})

	return app
}

func (cmd *ReservationsCmd) run(ctx context.Context, c *cli.Command) error {
	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	var rows [][]string
	for _, r := range client.Reservations.Reservations() {
		if !r.Status.Active() {
			continue
		}
		row := []string{r.Status.String(), r.SessionID, "", "", "", "(not in catalog)"}
		if s, ok := client.Catalog.SessionByID(r.SessionID); ok {
			row = sessionRow(client, s)
			row[0] = r.Status.String()
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		printer.Ctx(ctx).Infof("No reservations")
		return nil
	}

	printer.New(c.Root().Writer).Table([]string{"STATUS", "ID", "START", "END", "ROOM", "TITLE"}, rows)
	return nil
}
