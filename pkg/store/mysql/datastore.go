package mysql

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"atelier/pkg/store/mysql/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Datastore wraps GORM DB and provides transaction support
type Datastore struct {
	db *gorm.DB
}

// NewDatastore creates a new MySQL datastore
func NewDatastore(dsn string) (*Datastore, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                 newLogger,
		SkipDefaultTransaction: true,
		// Maps MySQL 1062 to gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}

	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return &Datastore{db: db}, nil
}

// NewDatastoreFromDB wraps an existing gorm handle
func NewDatastoreFromDB(db *gorm.DB) *Datastore {
	return &Datastore{db: db}
}

// Migrate creates or updates every engine table
func (ds *Datastore) Migrate(ctx context.Context) error {
	return ds.db.WithContext(ctx).AutoMigrate(
		&model.Project{},
		&model.Worker{},
		&model.RotationRecord{},
		&model.WorkerExclusion{},
		&model.Agreement{},
		&model.Payment{},
		&model.ProjectEvent{},
	)
}

// Close closes the database connection
func (ds *Datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction support using context
type contextTxKey struct{}

// ExecTx executes a function within a transaction
// If the function returns an error, the transaction is rolled back
// Otherwise, the transaction is committed.
// A nested call joins the outer transaction.
func (ds *Datastore) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(contextTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, contextTxKey{}, tx))
	})
}

// DB returns the GORM DB instance for the current context
// If a transaction is active in the context, it returns the transaction DB
// Otherwise, it returns the main DB
func (ds *Datastore) DB(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB)
	if ok {
		return tx.WithContext(ctx)
	}
	return ds.db.WithContext(ctx)
}

// GetDB returns the underlying GORM DB instance (for direct access if needed)
func (ds *Datastore) GetDB() *gorm.DB {
	return ds.db
}
