package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kanakku/internal/amqp"
	"kanakku/internal/ledger"
	"kanakku/internal/log"
	"kanakku/internal/storage"
	"kanakku/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store ledger.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(ctx, config)
	case PostgresBackend:
		store, err = f.createPostgresStore(ctx, config)
	case MemoryBackend:
		store = f.createMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	amqpClient := f.connectAMQP(config)

	f.logger.Info("Initialized ledger backend",
		"type", config.Type.String(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Store: store,
		AMQP:  amqpClient,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, store.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(ctx context.Context, config Config) (ledger.Store, error) {
	store, err := storage.OpenSQLite(ctx, config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
	return store, nil
}

func (f *DefaultFactory) createPostgresStore(ctx context.Context, config Config) (ledger.Store, error) {
	store, err := storage.OpenPostgres(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}
	f.logger.Info("Initialized Postgres store")
	return store, nil
}

func (f *DefaultFactory) createMemoryStore() ledger.Store {
	f.logger.Warn("Using in-memory ledger store, data is lost on restart")
	return memory.New()
}

// connectAMQP is best effort: the ledger keeps working without a broker and
// the client reconnects on its own once created.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
