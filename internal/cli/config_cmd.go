package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newConfigCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect the resolved configuration"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the configuration after files, environment and flags are applied",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				a := get()
				cfg := a.cfg
				return a.out.print(cfg, func(tw *tabwriter.Writer) {
					fmt.Fprintf(tw, "api_base_url\t%s\n", cfg.APIBaseURL)
					fmt.Fprintf(tw, "timezone\t%s\n", orDefault(cfg.Timezone, "(system)"))
					fmt.Fprintf(tw, "lang\t%s\n", cfg.Language())
					fmt.Fprintf(tw, "output\t%s\n", cfg.Output)
					fmt.Fprintf(tw, "session_file\t%s\n", cfg.SessionFile)
					fmt.Fprintf(tw, "redis_url\t%s\n", orDefault(cfg.RedisURL, "(none)"))
					fmt.Fprintf(tw, "cache_ttl\t%s\n", cfg.CacheTTL)
					fmt.Fprintf(tw, "draft_workers\t%d\n", cfg.DraftWorkers)
					fmt.Fprintf(tw, "timeout\t%s\n", cfg.Timeout)
					fmt.Fprintf(tw, "debug\t%t\n", cfg.Debug)
				})
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location and whether it exists",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				a := get()
				state := "found"
				if _, err := os.Stat(a.cfgFile); err != nil {
					state = "missing"
				}
				a.out.line("%s (%s)", a.cfgFile, state)
				return nil
			},
		},
	)
	return cmd
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
