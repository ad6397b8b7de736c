package cli

import (
	"time"

	"github.com/rileyhilliard/pipetop/internal/config"
	"github.com/spf13/cobra"
)

// GlobalFlags holds the flags shared by the root command and its
// subcommands. They override the config file and the environment.
type GlobalFlags struct {
	ConfigPath string
	URL        string
	Renderer   string
	Transport  string
	Sort       string
	Interval   time.Duration
	LogFile    string
	Verbose    bool
	NoColor    bool
}

// AddGlobalFlags registers the shared flags as persistent flags on cmd.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file (default: ./pipetop.yaml, then ~/.config/pipetop/config.yaml)")
	pf.StringVar(&flags.URL, "url", "", "GraphQL API endpoint (default derived from api.address)")
	pf.StringVar(&flags.Renderer, "renderer", "", "terminal renderer: tea or tcell")
	pf.StringVar(&flags.Transport, "transport", "", "metric feed: poll or subscribe")
	pf.StringVar(&flags.Sort, "sort", "", "initial sort: topology, name, throughput or errors")
	pf.DurationVar(&flags.Interval, "interval", 0, "metric refresh interval (e.g. 500ms, 2s)")
	pf.StringVar(&flags.LogFile, "log-file", "", "write logs to this file")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "debug logging (needs --log-file)")
	pf.BoolVar(&flags.NoColor, "no-color", false, "disable colors")
}

// ApplyOverrides copies every flag the user actually set onto cfg.
func ApplyOverrides(cmd *cobra.Command, flags *GlobalFlags, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.InheritedFlags().Lookup(name)
		}
		return f != nil && f.Changed
	}

	if changed("url") {
		cfg.API.URL = flags.URL
	}
	if changed("renderer") {
		cfg.Dashboard.Renderer = flags.Renderer
	}
	if changed("transport") {
		cfg.API.Transport = flags.Transport
	}
	if changed("sort") {
		cfg.Dashboard.Sort = flags.Sort
	}
	if changed("interval") {
		cfg.Dashboard.RefreshInterval = flags.Interval
	}
	if changed("log-file") {
		cfg.Log.File = flags.LogFile
	}
	if flags.Verbose {
		cfg.Log.Debug = true
	}
	if flags.NoColor {
		cfg.Dashboard.NoColor = true
	}
}
