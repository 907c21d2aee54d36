package backend

import (
	"context"

	"kanakku/internal/amqp"
	"kanakku/internal/ledger"
	"kanakku/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger store, the optional AMQP client and the
// cleanup releasing both
type BackendResult struct {
	Store   ledger.Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the AMQP client as a ledger event publisher, nil when
// AMQP is not configured.
func (r *BackendResult) Publisher() services.Publisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the ledger store selected by config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// AMQP is optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
