package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/agenda/internal/core/notify"
	"github.com/hay-kot/agenda/internal/printer"
)

type WatchCmd struct {
	flags *Flags
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "watch",
		Usage:       "Print changes to your reservations and bookmarks",
		UsageText:   "agenda watch",
		Description: "Stays connected to the remote store and prints a line whenever your reservations or bookmarks change, including changes made on other devices. Stop with Ctrl-C.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := cmd.flags.Client(ctx)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)

	onReservations := client.Hub.Subscribe(notify.TopicReservations, func(notify.Topic) {
		active := 0
		for _, r := range client.Reservations.Reservations() {
			if r.Status.Active() {
				active++
			}
		}
		p.Infof("reservations changed: %d active", active)
	})
	defer onReservations.Dispose()

	onBookmarks := client.Hub.Subscribe(notify.TopicBookmarks, func(notify.Topic) {
		p.Infof("bookmarks changed: %d bookmarked", len(client.Bookmarks.Bookmarks()))
	})
	defer onBookmarks.Dispose()

	p.Printf("Watching for changes, press Ctrl-C to stop")
	<-ctx.Done()
	return nil
}
