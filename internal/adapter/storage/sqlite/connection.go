// Package sqlite is the storage adapter for the single-node SQLite
// database file backing the central system.
package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// txCtxKey is the context key a TxManager stores its in-flight *gorm.DB
// transaction under, so repository methods called with that context
// join the same unit of work instead of opening their own.
type txCtxKey struct{}

// dbFor returns the transaction stashed in ctx by TxManager.Atomic, or
// fallback (the repository's own connection) when no transaction is
// active for this call.
func dbFor(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return fallback.WithContext(ctx)
}

// TxManager implements ports.TxManager against the shared *gorm.DB
// connection, grounded on TariffRepository.Replace's existing
// db.Transaction usage generalized across repositories.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txCtxKey{}, tx))
	})
}

var _ ports.TxManager = (*TxManager)(nil)

// NewConnection opens the single SQLite database file using GORM.
func NewConnection(path string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// SQLite has a single writer; keep the pool small to avoid
	// "database is locked" errors under concurrent OCPP sessions.
	sqlDB.SetMaxOpenConns(1)

	log.Info("opened sqlite database", zap.String("path", path))
	return db, nil
}

// RunMigrations creates tables on first boot and adds columns introduced
// by later revisions of the schema via column introspection, so an
// existing database file is never dropped or recreated.
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(
		&domain.ChargePoint{},
		&domain.CommunitySettings{},
		&domain.StatusLog{},
		&domain.Transaction{},
		&domain.MeterSample{},
		&domain.StopRecord{},
		&domain.Card{},
		&domain.IdTag{},
		&domain.CardWhitelistEntry{},
		&domain.Payment{},
		&domain.RealtimeDeduction{},
		&domain.TariffSegment{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := addColumnIfMissing(db, log, &domain.ChargePoint{}, "SupportsSmartCharging"); err != nil {
		return err
	}
	if err := addColumnIfMissing(db, log, &domain.ChargePoint{}, "MinCurrentA"); err != nil {
		return err
	}

	return nil
}

// addColumnIfMissing adds a single column discovered missing on an
// otherwise-migrated table, the way a hand-rolled ALTER TABLE script
// would, without touching unrelated columns or data.
func addColumnIfMissing(db *gorm.DB, log *zap.Logger, model interface{}, field string) error {
	m := db.Migrator()
	if m.HasColumn(model, field) {
		return nil
	}
	log.Info("adding missing column", zap.String("field", field))
	return m.AddColumn(model, field)
}

// Close releases the underlying *sql.DB handle.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
