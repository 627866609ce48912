package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/config"
	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/logging"
	"github.com/example/studentkit/internal/models"
)

func newImportLegacyCmd() *cobra.Command {
	var userID, file string
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import a browser local-storage dump into a user's profiles",
		Long: `Reads a JSON object with the keys gpaProfiles, activeGpaProfile, umsTermIds and
theme, as exported from the old web client, and migrates it into the store selected
by STORE_DRIVER. Running it twice for the same dump rewrites the same profiles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.IsRelease())
			if err != nil {
				return err
			}
			defer logger.Sync()

			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var legacy models.LegacyStorage
			if err := json.NewDecoder(in).Decode(&legacy); err != nil {
				return fmt.Errorf("failed to decode local storage dump: %w", err)
			}

			res, err := importLegacy(cmd.Context(), cfg, logger, userID, legacy)
			if err != nil {
				return err
			}
			return printResult(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d profile(s) for %s\n", res.Imported, userID)
				for _, r := range res.Renamed {
					fmt.Fprintf(w, "  renamed %s\n", r)
				}
				if res.ActiveProfileID != "" {
					fmt.Fprintf(w, "Active profile: %s\n", res.ActiveProfileID)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "UID of the user to import into")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON dump (default stdin)")
	return cmd
}

func importLegacy(ctx context.Context, cfg *config.Config, logger *zap.Logger, userID string, legacy models.LegacyStorage) (*core.MigrationResult, error) {
	store, _, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	profiles := core.NewProfileService(
		db.NewProfileRepository(store),
		db.NewSharedProfileRepository(store),
		db.NewUserRepository(store),
		logger, nil,
		core.ProfileServiceOptions{LoadAttempts: cfg.InitRetries, RetryDelay: cfg.InitRetryDelay},
	)
	defer profiles.Close()
	return profiles.MigrateFromLocalStorage(ctx, userID, legacy)
}
