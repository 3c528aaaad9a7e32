package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostbridge/hostbridge/internal/config"
	"github.com/hostbridge/hostbridge/internal/secrets"
)

func newSecretCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Inspect the secrets file backing {{secret:KEY}} template expansion",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured secret keys (values are never printed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := secrets.New(cfg.SecretsFilePath)
			if err != nil {
				return fmt.Errorf("open secrets file: %w", err)
			}
			for _, k := range store.Keys() {
				fmt.Println(k)
			}
			return nil
		},
	})
	return cmd
}
