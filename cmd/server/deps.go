package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/bookshelf/backend/internal/auth"
	"github.com/ayush/bookshelf/backend/internal/books"
	"github.com/ayush/bookshelf/backend/internal/config"
	"github.com/ayush/bookshelf/backend/internal/shelf"
	"github.com/ayush/bookshelf/backend/internal/store"
)

// database is what both SQL stores provide.
type database interface {
	shelf.BookStore
	books.BookReader
	auth.UserStore
	Migrate(ctx context.Context) error
	GetName(ctx context.Context, userID string) (string, error)
	SetName(ctx context.Context, userID, name string) error
}

// names covers reading and writing display names.
type names interface {
	shelf.NameStore
	auth.NameWriter
}

// deps are the connected backing services. close releases them in
// reverse order of opening.
type deps struct {
	db      database
	names   names
	rdb     *redis.Client
	covers  *store.MinioStore
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (database, func(), error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		return store.NewPostgresStore(pool), pool.Close, nil
	}
}

func connect(ctx context.Context, cfg *config.Config, logger *log.Logger) (*deps, error) {
	d := &deps{}
	fail := func(err error) (*deps, error) {
		d.close()
		return nil, err
	}

	db, closeDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	d.closers = append(d.closers, closeDB)
	d.db = db
	if err := db.Migrate(ctx); err != nil {
		return fail(fmt.Errorf("migrate: %w", err))
	}
	d.names = db

	if cfg.MongoURI != "" {
		mc, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return fail(fmt.Errorf("mongo connect: %w", err))
		}
		d.closers = append(d.closers, func() { mc.Disconnect(context.Background()) })
		ms := store.NewMongoStore(mc.Database(cfg.MongoDB))
		if err := ms.EnsureIndexes(ctx); err != nil {
			return fail(fmt.Errorf("mongo indexes: %w", err))
		}
		d.names = ms
		logger.Info("display names stored in mongo", "db", cfg.MongoDB)
	}

	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fail(err)
	}
	d.closers = append(d.closers, func() { rdb.Close() })
	d.rdb = rdb

	covers, err := store.NewMinioStore(ctx, store.MinioOptions{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MinioPublicURL,
	})
	if err != nil {
		return fail(fmt.Errorf("minio connect: %w", err))
	}
	d.covers = covers

	return d, nil
}
