// Package cli is the terminal front end: cobra commands that drive the
// controllers and dialogs and render their state.
package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// Execute runs the tasker command line with args.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, stdin io.Reader) error {
	root, cleanup := newRootCommand(stdout, stderr, stdin)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if cerr := cleanup(ctx); err == nil {
		err = cerr
	}
	return err
}

func newRootCommand(stdout, stderr io.Writer, stdin io.Reader) (*cobra.Command, func(context.Context) error) {
	v := newViper()
	var (
		configPath string
		a          *app
	)
	get := func() *app { return a }

	root := &cobra.Command{
		Use:   "tasker",
		Short: "Terminal client for the task management API",
		Long: `tasker signs in to the task management API, lists and edits tasks,
manages organizations and turns free text into task drafts.

Configuration is read from ~/.config/tasker/config.yaml, TASKER_* environment
variables and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := readConfig(v, configPath)
			if err != nil {
				return err
			}
			a, err = newApp(cfg, stdout, stderr, stdin)
			if err != nil {
				return err
			}
			a.cfgFile = v.ConfigFileUsed()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.config/tasker/config.yaml)")
	flags.String("api-base-url", "", "API root URL")
	flags.String("timezone", "", "viewer time zone, e.g. Asia/Tokyo (default: system zone)")
	flags.String("lang", "", "message language: ja or en")
	flags.StringP("output", "o", "", "output format: table, yaml or json")
	flags.String("session-file", "", "where the session cookie is kept")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("trace", false, "log a span for every API request")
	for key, name := range map[string]string{
		keyAPIBaseURL:  "api-base-url",
		keyTimezone:    "timezone",
		keyLang:        "lang",
		keyOutput:      "output",
		keySessionFile: "session-file",
		keyDebug:       "debug",
		keyTrace:       "trace",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newAuthCommand(get),
		newOrgsCommand(get),
		newTasksCommand(get),
		newChatCommand(get),
		newWatchCommand(get),
		newConfigCommand(get),
	)

	cleanup := func(ctx context.Context) error {
		if a == nil {
			return nil
		}
		return a.close(ctx)
	}
	return root, cleanup
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, &dialogError{msg: "invalid id " + strconv.Quote(arg), err: err}
	}
	return id, nil
}
