package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/pipetop/internal/api"
	"github.com/rileyhilliard/pipetop/internal/config"
	"github.com/rileyhilliard/pipetop/internal/dashboard"
	"github.com/rileyhilliard/pipetop/internal/errors"
	"github.com/rileyhilliard/pipetop/internal/logger"
	"github.com/rileyhilliard/pipetop/internal/surface"
	"github.com/rileyhilliard/pipetop/internal/widgets"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the pipetop command tree.
func NewRootCmd() *cobra.Command {
	flags := &GlobalFlags{}

	cmd := &cobra.Command{
		Use:   "pipetop",
		Short: "Live terminal dashboard for a running data pipeline",
		Long: `pipetop connects to a pipeline's GraphQL API and shows every stage
with its events processed, errors and throughput, updated live.

Keys: ↑/↓ or j/k move, s cycles the sort, r refreshes, ? shows help, q quits.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, flags)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.WrapWithCode(err, errors.ErrConfig, "Invalid flag", "Run 'pipetop --help' for usage")
	})

	AddGlobalFlags(cmd, flags)
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd(flags))
	return cmd
}

// Execute runs the CLI and exits with the status matching the error.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

// run executes the command tree and returns the exit status, printing a
// one-line diagnostic to stderr on failure.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return errors.ExitOK
	}
	if isUnknownCommandError(err) {
		err = errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Unknown command %q", extractUnknownCommand(err)),
			"Run 'pipetop --help' for usage")
	}
	fmt.Fprintln(stderr, report(err))
	return errors.ExitCode(err)
}

// report formats err as the single stderr line, with the suggestion in
// parentheses when there is one.
func report(err error) string {
	line := "pipetop: " + errors.Diagnostic(err)
	var pErr *errors.Error
	if stderrors.As(err, &pErr) && pErr.Suggestion != "" {
		line += " (" + pErr.Suggestion + ")"
	}
	return line
}

// resolveConfig loads the config file and environment, then applies flags
// and validates the result.
func resolveConfig(cmd *cobra.Command, flags *GlobalFlags) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(flags.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	ApplyOverrides(cmd, flags, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func runDashboard(cmd *cobra.Command, flags *GlobalFlags) error {
	cfg, path, err := resolveConfig(cmd, flags)
	if err != nil {
		return err
	}

	log, flush, err := logger.NewFileLogger(logger.Options{
		Path:  cfg.Log.File,
		Debug: cfg.Log.Debug,
		Name:  "pipetop",
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't open log file "+cfg.Log.File,
			"Check the directory exists and is writable")
	}
	defer func() { _ = flush() }()
	if path != "" {
		log.Debug("loaded config from %s", path)
	}

	url := cfg.ResolveURL()
	client, err := api.NewClient(url, api.WithLogger(log), api.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Invalid API URL", "Use something like http://127.0.0.1:8686/graphql")
	}

	sortKey, _ := widgets.ParseSortKey(cfg.Dashboard.Sort)

	surf, err := surface.New(cfg.Dashboard.Renderer, surface.Options{NoColor: cfg.Dashboard.NoColor})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Invalid renderer", config.Suggest(cfg.Dashboard.Renderer, config.Renderers))
	}

	ctrl := dashboard.New(dashboard.Config{
		Title:           "pipetop " + hostOf(url),
		URL:             url,
		TickInterval:    cfg.Dashboard.TickInterval,
		RefreshInterval: cfg.Dashboard.RefreshInterval,
		Timeout:         cfg.API.Timeout,
		Mode:            cfg.API.Transport,
		LostAfter:       cfg.API.LostAfter,
		Sort:            sortKey,
		TrendSize:       cfg.Dashboard.TrendSize,
	}, client, surf, dashboard.WithLogger(log))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return ctrl.Run(ctx)
}

// hostOf strips the scheme and path from an endpoint URL for the title.
func hostOf(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}
	if i := strings.IndexByte(url, '/'); i >= 0 {
		url = url[:i]
	}
	return url
}

// isUnknownCommandError reports whether cobra rejected the command line
// because of an unknown subcommand.
func isUnknownCommandError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "unknown command")
}

// extractUnknownCommand pulls the quoted command name out of cobra's
// `unknown command "foo" for "pipetop"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
