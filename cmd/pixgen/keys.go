package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	mw "github.com/kiranshivaraju/pixgen/internal/api/middleware"
	"github.com/kiranshivaraju/pixgen/internal/config"
	"github.com/kiranshivaraju/pixgen/internal/store"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for the pixgen server",
	}
	keys.AddCommand(newKeysCreateCmd())
	return keys
}

func newKeysCreateCmd() *cobra.Command {
	var (
		name          string
		scopes        []string
		migrationsDir string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		Long: `Creates an API key directly in the database named by DATABASE_URL.
Use it to bootstrap the first admin key; later keys can be made through the API.
Pending migrations are applied first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range scopes {
				if !models.IsKnownScope(s) {
					return fmt.Errorf("unknown scope %q", s)
				}
			}

			dbCfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}

			if err := store.RunMigrations(dbCfg.URL, migrationsDir); err != nil {
				return err
			}
			pool, err := store.Connect(cmd.Context(), dbCfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			raw, key, err := mw.IssueKey(name, scopes)
			if err != nil {
				return err
			}
			if err := store.NewPostgresStore(pool).CreateAPIKey(cmd.Context(), key); err != nil {
				return fmt.Errorf("create api key: %w", err)
			}
			slog.Info("api key created", "key_id", key.ID, "key_prefix", key.KeyPrefix, "scopes", key.Scopes)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:     %s\n", key.ID)
			fmt.Fprintf(out, "Scopes: %v\n", key.Scopes)
			fmt.Fprintf(out, "Key:    %s\n", raw)
			fmt.Fprintln(out, "Store the key now; it cannot be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human readable key name")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{models.ScopeGenerate}, "Scopes to grant (generate, admin)")
	cmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "Directory holding the SQL migrations")
	cmd.MarkFlagRequired("name")

	return cmd
}
