package main

import (
	"context"
	"fmt"

	"github.com/diwise/entity-binder/internal/pkg/application/binder"
	"github.com/diwise/entity-binder/internal/pkg/infrastructure/repositories/cache"
	"github.com/diwise/entity-binder/internal/pkg/infrastructure/repositories/memory"
	"github.com/diwise/entity-binder/internal/pkg/infrastructure/repositories/postgres"
	"github.com/diwise/entity-binder/internal/pkg/infrastructure/repositories/remote"
	"github.com/diwise/entity-binder/pkg/binding/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// newStoreFactory connects to the configured databases and returns a factory
// that creates the record store of each mapper
func newStoreFactory(ctx context.Context, flags FlagMap) (binder.StoreFactory, func(), error) {
	var err error
	var pool *pgxpool.Pool
	var rdb *redis.Client

	cleanup := func() {
		if pool != nil {
			pool.Close()
		}
		if rdb != nil {
			rdb.Close()
		}
	}

	switch flags[storeType] {
	case "postgres":
		pool, err = postgres.Connect(ctx, postgres.LoadConfiguration(ctx))
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to database: %w", err)
		}
	case "memory":
	default:
		return nil, cleanup, fmt.Errorf("unsupported record store %q", flags[storeType])
	}

	if flags[redisURL] != "" {
		rdb, err = cache.Connect(ctx, flags[redisURL])
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
	}

	factory := func(ctx context.Context, mc binder.MapperConfig, idField string, fields []string) (binder.RecordStore, error) {
		logger := logging.GetFromContext(ctx).With("mapper", mc.Name)

		var store binder.RecordStore

		if mc.Source != "" {
			logger.Info("records are read from a remote binder", "source", mc.Source)
			c := client.NewBinderClient(mc.Source, client.Token(flags[remoteToken]), client.Debug(flags[remoteDebug]))
			store = remote.New(c, mc.Name, fields)
		} else if pool != nil {
			table, err := postgres.NewRecordTable(mc.TableName(), idField, fields)
			if err != nil {
				return nil, err
			}

			if err = table.Initialize(ctx, pool); err != nil {
				return nil, err
			}

			store = table
		} else {
			store = memory.NewRecordStore()
		}

		ttl, err := mc.CacheTTL()
		if err != nil {
			return nil, err
		}

		if ttl > 0 {
			if rdb == nil {
				logger.Warn("caching is enabled but no redis url has been configured")
				return store, nil
			}

			store = cache.New(rdb, mc.Name, ttl, store)
		}

		return store, nil
	}

	return factory, cleanup, nil
}
