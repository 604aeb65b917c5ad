package backend

import (
	"context"
	"errors"
	"fmt"

	"dailysales/internal/amqp"
	"dailysales/internal/ledger"
	"dailysales/internal/ledger/memory"
	"dailysales/internal/log"
	"dailysales/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.NewNop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		f.attachPublisher(ctx, config, result)
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.Open(ctx, config.SQLiteDSN, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite ledger store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "dsn", config.SQLiteDSN)

	return &BackendResult{
		NewStore: func(sessionID string) ledger.Store { return repo.ForSession(sessionID) },
		Checks:   map[string]CheckFunc{"sqlite": repo.Ping},
		Cleanup:  repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		NewStore: func(string) ledger.Store { return memory.New() },
		Cleanup:  func() error { return nil },
	}
}

// attachPublisher dials RabbitMQ. A broker that cannot be reached leaves the
// backend without sale events instead of failing startup.
func (f *DefaultFactory) attachPublisher(ctx context.Context, config Config, result *BackendResult) {
	client := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey, f.logger)
	if err := client.Connect(ctx, config.AMQPDialRetries); err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sale events", log.FieldError, err)
		_ = client.Close()
		return
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"routing_key", config.AMQPRoutingKey)

	storeCleanup := result.Cleanup
	result.Publisher = client
	result.Cleanup = func() error {
		return errors.Join(client.Close(), storeCleanup())
	}
}
