package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "leafcheck",
		Short:         "Classify images sent to a LINE bot and reply with the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(configPath)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to the TOML config file (default config.toml).")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(configPath)
			return nil
		},
	})
	root.AddCommand(newClassifyCmd(&configPath))
	return root
}
