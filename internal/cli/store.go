package cli

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/taskflow/internal/persistence"
)

// ValidStores lists the backends the run command can use.
var ValidStores = []string{"memory", "sqlite", "postgres", "redis", "mongo"}

// openPersistence connects to the selected backend. dsn is a file path for
// sqlite, a connection string for postgres and mongo, and an address for
// redis. Mongo must be a replica set member or a mongos. The returned close function releases the connection.
func openPersistence(ctx context.Context, store, dsn string) (persistence.Persistence, func(), error) {
	noop := func() {}

	switch store {
	case "memory":
		return persistence.NewInMemory(), noop, nil

	case "sqlite":
		if dsn == "" {
			dsn = "taskflow.db"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return persistence.Persistence{}, nil, err
		}
		db.SetMaxOpenConns(1)
		instances, err := persistence.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return persistence.Persistence{}, nil, err
		}
		events, err := persistence.NewSQLiteEventStore(db)
		if err != nil {
			_ = db.Close()
			return persistence.Persistence{}, nil, err
		}
		return persistence.Persistence{
			Instances: instances,
			Tasks:     instances,
			Events:    events,
		}, func() { _ = db.Close() }, nil

	case "postgres":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return persistence.Persistence{}, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return persistence.Persistence{}, nil, err
		}
		pg, err := persistence.NewPostgresStore(db)
		if err != nil {
			_ = db.Close()
			return persistence.Persistence{}, nil, err
		}
		return persistence.Persistence{Instances: pg, Tasks: pg}, func() { _ = db.Close() }, nil

	case "redis":
		if dsn == "" {
			dsn = "localhost:6379"
		}
		client := redis.NewClient(&redis.Options{Addr: dsn})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return persistence.Persistence{}, nil, err
		}
		rs := persistence.NewRedisStore(client, "taskflow:")
		return persistence.Persistence{Instances: rs, Tasks: rs}, func() { _ = client.Close() }, nil

	case "mongo":
		if dsn == "" {
			dsn = "mongodb://localhost:27017"
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
		if err != nil {
			return persistence.Persistence{}, nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return persistence.Persistence{}, nil, err
		}
		ms := persistence.NewMongoStore(client, "")
		return persistence.Persistence{Instances: ms, Tasks: ms},
			func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return persistence.Persistence{}, nil,
			fmt.Errorf("unknown store %q: must be one of %v", store, ValidStores)
	}
}

func isValidStore(store string) bool {
	return slices.Contains(ValidStores, store)
}
