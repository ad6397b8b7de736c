package cli

import (
	"testing"
	"time"

	"github.com/rileyhilliard/pipetop/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseFlags builds a root-like command, parses args and applies the
// overrides to a default config.
func parseFlags(t *testing.T, args ...string) *config.Config {
	t.Helper()
	flags := &GlobalFlags{}
	cmd := &cobra.Command{Use: "pipetop"}
	AddGlobalFlags(cmd, flags)
	require.NoError(t, cmd.ParseFlags(args))

	cfg := config.DefaultConfig()
	ApplyOverrides(cmd, flags, cfg)
	return cfg
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keeps defaults",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, config.DefaultConfig(), cfg)
			},
		},
		{
			name: "url",
			args: []string{"--url", "http://metrics:9000/graphql"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "http://metrics:9000/graphql", cfg.API.URL)
				assert.Equal(t, "http://metrics:9000/graphql", cfg.ResolveURL())
			},
		},
		{
			name: "renderer and transport",
			args: []string{"--renderer", "tcell", "--transport", "subscribe"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "tcell", cfg.Dashboard.Renderer)
				assert.Equal(t, "subscribe", cfg.API.Transport)
			},
		},
		{
			name: "sort and interval",
			args: []string{"--sort", "errors", "--interval", "500ms"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "errors", cfg.Dashboard.Sort)
				assert.Equal(t, 500*time.Millisecond, cfg.Dashboard.RefreshInterval)
				assert.Equal(t, config.DefaultTickInterval, cfg.Dashboard.TickInterval)
			},
		},
		{
			name: "log file and verbose",
			args: []string{"--log-file", "/tmp/p.log", "-v"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "/tmp/p.log", cfg.Log.File)
				assert.True(t, cfg.Log.Debug)
			},
		},
		{
			name: "no color",
			args: []string{"--no-color"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.True(t, cfg.Dashboard.NoColor)
			},
		},
		{
			name: "explicit empty renderer still overrides",
			args: []string{"--renderer="},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "", cfg.Dashboard.Renderer)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parseFlags(t, tt.args...))
		})
	}
}

func TestApplyOverrides_SubcommandSeesPersistentFlags(t *testing.T) {
	flags := &GlobalFlags{}
	root := &cobra.Command{Use: "pipetop"}
	AddGlobalFlags(root, flags)

	var got *config.Config
	sub := &cobra.Command{
		Use: "config",
		Run: func(cmd *cobra.Command, args []string) {
			got = config.DefaultConfig()
			ApplyOverrides(cmd, flags, got)
		},
	}
	root.AddCommand(sub)
	root.SetArgs([]string{"config", "--sort", "name"})
	require.NoError(t, root.Execute())

	require.NotNil(t, got)
	assert.Equal(t, "name", got.Dashboard.Sort)
}
