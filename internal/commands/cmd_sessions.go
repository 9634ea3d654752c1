package commands

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/agenda/internal/app"
	"github.com/hay-kot/agenda/internal/core/schedule"
	"github.com/hay-kot/agenda/internal/printer"
)

const timeLayout = "Mon 15:04"

type SessionsCmd struct {
	flags  *Flags
	tag    string
	format string
}

// NewSessionsCmd creates a new sessions command
func NewSessionsCmd(flags *Flags) *SessionsCmd {
	return &SessionsCmd{flags: flags}
}

// Register adds the sessions command to the application
func (cmd *SessionsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "sessions",
		Usage:       "List the conference sessions",
		UsageText:   "agenda sessions [--tag <id>] [--format text|json]",
		Description: "Displays every session in the catalog ordered by start time, with your reservation and bookmark markers.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "tag",
				Aliases:     []string{"t"},
				Usage:       "only show sessions with this tag id",
				Destination: &cmd.tag,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SessionsCmd) run(ctx context.Context, c *cli.Command) error {
	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	sessions := client.Catalog.All()
	if cmd.tag != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.HasTag(cmd.tag) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	if len(sessions) == 0 {
		printer.Ctx(ctx).Infof("No sessions found")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, sessionRow(client, s))
	}
	printer.New(c.Root().Writer).Table([]string{"", "ID", "START", "END", "ROOM", "TITLE"}, rows)
	return nil
}

func sessionRow(client *app.Client, s schedule.Session) []string {
	var marks strings.Builder
	if client.Reservations.Status(s.ID).Active() {
		marks.WriteString(printer.Check)
	}
	if client.Bookmarks.IsBookmarked(s.ID) {
		marks.WriteString(printer.Star)
	}

	return []string{
		marks.String(),
		s.ID,
		s.Start.Local().Format(timeLayout),
		s.End.Local().Format(timeLayout),
		s.Room.Name,
		s.Title,
	}
}
