package db

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/config"
)

// Open creates the store selected by cfg.StoreDriver. The Auth client is nil when no
// Firebase project is configured, which is only allowed with the SQLite store.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, *auth.Client, error) {
	switch cfg.StoreDriver {
	case config.StoreFirestore:
		clients, err := InitFirebase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return NewFirestoreStore(clients.Firestore), clients.Auth, nil

	case config.StoreSQLite:
		store, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("SQLite store opened", zap.String("path", cfg.SQLitePath))
		if cfg.FirebaseProjectID == "" {
			return store, nil, nil
		}
		clients, err := InitFirebase(ctx, cfg, logger)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		// Only Auth is used next to SQLite.
		if err := clients.Close(); err != nil {
			logger.Warn("Failed to close unused Firestore client", zap.Error(err))
		}
		return store, clients.Auth, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
