package cli

import (
	"fmt"

	"github.com/rileyhilliard/pipetop/internal/errors"
	"github.com/spf13/cobra"
)

func newConfigCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration pipetop would run with, after merging the config
file, PIPETOP_* environment variables and flags, as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't encode config", "")
			}

			w := cmd.OutOrStdout()
			source := "defaults"
			if path != "" {
				source = path
			}
			fmt.Fprintf(w, "# source: %s\n", source)
			fmt.Fprintf(w, "# endpoint: %s\n", cfg.ResolveURL())
			_, err = w.Write(out)
			return err
		},
	}
}
