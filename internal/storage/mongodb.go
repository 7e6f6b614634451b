package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	defaultMongoDatabase        = "freeway"
	mongoAppName                = "freeway"
	mongoServerSelectionTimeout = 10 * time.Second
	mongoDisconnectTimeout      = 10 * time.Second
)

type mongoStorage struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB connects to the deployment that holds the projects, usage_logs
// and provider_benchmarks collections.
func NewMongoDB(ctx context.Context, cfg MongoDBConfig) (Storage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MongoDB URL is required")
	}

	client, err := mongo.Connect(mongoClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &mongoStorage{
		client:   client,
		database: client.Database(mongoDatabaseName(cfg)),
	}, nil
}

// mongoClientOptions applies the URL and fills in the app name and server
// selection timeout unless the URL sets them.
func mongoClientOptions(cfg MongoDBConfig) *options.ClientOptions {
	opts := options.Client().ApplyURI(cfg.URL)
	if opts.AppName == nil {
		opts.SetAppName(mongoAppName)
	}
	if opts.ServerSelectionTimeout == nil {
		opts.SetServerSelectionTimeout(mongoServerSelectionTimeout)
	}
	return opts
}

func mongoDatabaseName(cfg MongoDBConfig) string {
	if cfg.Database == "" {
		return defaultMongoDatabase
	}
	return cfg.Database
}

func (s *mongoStorage) Type() string                   { return TypeMongoDB }
func (s *mongoStorage) SQLiteDB() *sql.DB              { return nil }
func (s *mongoStorage) PostgreSQLPool() *pgxpool.Pool  { return nil }
func (s *mongoStorage) MongoDatabase() *mongo.Database { return s.database }

// Close disconnects the client, waiting at most mongoDisconnectTimeout for
// in-flight operations.
func (s *mongoStorage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
