package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/harpoon/internal/config"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configFile string
	envFile    string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "harpoon",
		Short: "Content-addressed hygiene engine for text fragments",
		Long: `harpoon hashes, classifies and scores batches of text fragments, then
runs an absorb/requeue cycle that chains accepted fragments into an ordered
anchor list. Run it as an HTTP service with "serve" or on a file with "cycle".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	cmd.AddCommand(
		newServeCmd(opts),
		newCycleCmd(opts),
		newHashCmd(opts),
		newFingerprintCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) load() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	}
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg
	return nil
}
