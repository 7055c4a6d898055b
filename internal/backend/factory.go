package backend

import (
	"context"
	"fmt"

	applog "fintrack/internal/log"
	"fintrack/internal/store/memory"
	"fintrack/internal/store/mongo"
	"fintrack/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentStore)}
}

// Open implements Factory.Open.
func (f *DefaultFactory) Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.openSQLite(ctx, config)
	case MongoBackend:
		return f.openMongo(ctx, config)
	case MemoryBackend:
		return f.openMemory(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) openSQLite(ctx context.Context, config Config) (*Result, error) {
	s, err := sqlite.Open(ctx, config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Store: s, Cleanup: s.Close}, nil
}

func (f *DefaultFactory) openMongo(ctx context.Context, config Config) (*Result, error) {
	s, err := mongo.Open(ctx, config.MongoURI, config.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized MongoDB backend", "database", config.MongoDatabase)
	return &Result{Store: s, Cleanup: s.Close}, nil
}

func (f *DefaultFactory) openMemory(ctx context.Context) (*Result, error) {
	s := memory.New()
	f.logger.WarnContext(ctx, "Initialized memory backend; records are lost on restart")
	return &Result{Store: s, Cleanup: s.Close}, nil
}
