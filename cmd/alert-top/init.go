package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/settings"
)

func newInitCmd() *cobra.Command {
	var opts settings.MergeOptions
	cmd := &cobra.Command{
		Use:   "init BASE_URL",
		Short: "Write the backend endpoints into the config file",
		Long: `init sets backend.base_url and push.url in the config file, creating it
with defaults when missing. Existing values that differ are kept unless
--overwrite is given. The API token is read from ` + config.TokenEnv + ` and is
never written to disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.BaseURL = args[0]
			opts.Path = flags.configPath
			return runInit(opts)
		},
	}
	cmd.Flags().StringVar(&opts.PushURL, "push-url", "", "push endpoint (default BASE_URL)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace existing values that differ")
	return cmd
}

func runInit(opts settings.MergeOptions) error {
	out := settings.Merge(opts)

	for _, msg := range out.Messages {
		fmt.Println(msg)
	}
	for _, w := range out.Warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	switch out.Result {
	case settings.MergeSuccess:
		fmt.Println("Config updated.")
		return nil
	case settings.MergeAlreadyConfigured:
		fmt.Println("Already configured. No changes needed.")
		return nil
	default:
		return out.Err
	}
}
