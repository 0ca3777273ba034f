package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"wikiguard/cmd/bootstrap"
	"wikiguard/cmd/cleanuppreferences"
	"wikiguard/src/errorhandler"
	"wikiguard/src/repository"
	"wikiguard/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "wikiguard"
	app.Usage = "The wikiguard command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		cleanupPreferencesCMD,
		exceptionCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP server",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the healthcheck and exception lookup routes on PORT`,
	}
	cleanupPreferencesCMD = cli.Command{
		Name:      "cleanup-preferences",
		Usage:     "clean up hidden preferences or removed preferences",
		Action:    cleanupPreferencesAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "dry-run", Usage: "print debug info instead of actually deleting"},
			cli.BoolFlag{Name: "hidden", Usage: "drop hidden preferences (HIDDEN_PREFS)"},
			cli.BoolFlag{Name: "unknown", Usage: `drop unknown preferences (not in DEFAULT_USER_OPTIONS or prefixed with "userjs-")`},
		},
		Description: `Remove unused preferences from the user_properties table`,
	}
	exceptionCMD = cli.Command{
		Name:      "exception",
		Usage:     "show stored error records",
		Action:    exceptionAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "id", Usage: "log id as shown in the error message"},
			cli.StringFlag{Name: "channel", Usage: "limit the latest records to one channel"},
			cli.IntFlag{Name: "limit", Value: 20, Usage: "number of latest records to show"},
		},
		Description: `Look up structured error records by log id, or list the latest ones`,
	}
)

// run migrates the database and executes fn under the app's host. Errors
// and panics go through the error pipeline, which exits with status 1.
func run(fn func(a *bootstrap.App) error) error {
	a, err := bootstrap.New()
	if err != nil {
		return err
	}
	if status := a.Run(fn); status != 0 {
		return cli.NewExitError("", status)
	}
	return nil
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting serve CMD")

	return run(func(a *bootstrap.App) error {
		port := server.GetConfig().Port
		return server.StartServer(port, server.NewRouter(a.Pipeline, a.Exceptions))
	})
}

func cleanupPreferencesAction(c *cli.Context) error {
	logrus.Info("Starting cleanup-preferences CMD")

	return run(func(a *bootstrap.App) error {
		if err := a.RequireDB(); err != nil {
			return err
		}
		cleanup := &cleanuppreferences.CleanupPreferences{
			Log:     logrus.WithField("cmd", "cleanup-preferences"),
			Out:     os.Stdout,
			Repo:    repository.NewUserPropertyRepository(a.DB),
			Tx:      a.Tx,
			Hidden:  c.Bool("hidden"),
			Unknown: c.Bool("unknown"),
			DryRun:  c.Bool("dry-run"),
		}
		return cleanup.Start(context.Background())
	})
}

func exceptionAction(c *cli.Context) error {
	return run(func(a *bootstrap.App) error {
		if err := a.RequireDB(); err != nil {
			return err
		}

		ctx := context.Background()
		var err error
		var records []string
		if id := c.String("id"); id != "" {
			records, err = recordsByLogID(ctx, a.Exceptions, id)
		} else {
			records, err = latestRecords(ctx, a.Exceptions, c.String("channel"), c.Int("limit"))
		}
		if err != nil {
			return err
		}

		for _, record := range records {
			fmt.Println(record)
		}
		return nil
	})
}

func recordsByLogID(ctx context.Context, repo *repository.ExceptionRepository, id string) ([]string, error) {
	found, err := repo.FindByLogID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no records with log id %q", id)
	}

	out := make([]string, 0, len(found))
	for _, exc := range found {
		out = append(out, prettyRecord(exc.Channel, exc.Record))
	}
	return out, nil
}

func latestRecords(ctx context.Context, repo *repository.ExceptionRepository, channel string, limit int) ([]string, error) {
	found, err := repo.FindLatest(ctx, channel, limit)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(found))
	for _, exc := range found {
		out = append(out, fmt.Sprintf("%s  [%s] %-9s %s: %s",
			exc.CreatedAt.Format("2006-01-02 15:04:05"), exc.LogID, exc.Channel, exc.Type, exc.Message))
	}
	return out, nil
}

// prettyRecord re-indents a stored record; records that no longer decode are
// shown as stored.
func prettyRecord(channel, raw string) string {
	rec, err := errorhandler.DecodeRecord(raw)
	if err != nil {
		return channel + ": " + raw
	}
	pretty, err := errorhandler.Serialize(rec, true)
	if err != nil {
		return channel + ": " + raw
	}
	return channel + ": " + pretty
}
