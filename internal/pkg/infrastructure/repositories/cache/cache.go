package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/redis/go-redis/v9"
)

// RecordStore is the store whose records are cached
type RecordStore interface {
	Get(ctx context.Context, id string) (map[string]string, bool, error)
	Save(ctx context.Context, id string, record map[string]string) error
	List(ctx context.Context) ([]map[string]string, error)
}

// Connect parses a redis url and verifies that the server can be reached
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// CachedRecordStore keeps a hash per record in redis in front of another
// store. Saves are written through and listings always go to the store.
type CachedRecordStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	next   RecordStore
}

func New(client *redis.Client, mapper string, ttl time.Duration, next RecordStore) *CachedRecordStore {
	return &CachedRecordStore{
		client: client,
		prefix: fmt.Sprintf("entity-binder:%s:", mapper),
		ttl:    ttl,
		next:   next,
	}
}

func (c *CachedRecordStore) Get(ctx context.Context, id string) (map[string]string, bool, error) {
	logger := logging.GetFromContext(ctx)

	cached, err := c.client.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		logger.Warn("failed to read record from cache", "key", c.key(id), "err", err.Error())
	} else if len(cached) > 0 {
		return cached, true, nil
	}

	record, found, err := c.next.Get(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}

	if err = c.store(ctx, id, record); err != nil {
		logger.Warn("failed to cache record", "key", c.key(id), "err", err.Error())
	}

	return record, true, nil
}

func (c *CachedRecordStore) Save(ctx context.Context, id string, record map[string]string) error {
	err := c.next.Save(ctx, id, record)
	if err != nil {
		return err
	}

	if err = c.store(ctx, id, record); err != nil {
		// never leave a stale record behind
		c.client.Del(ctx, c.key(id))
		logging.GetFromContext(ctx).Warn("failed to cache record", "key", c.key(id), "err", err.Error())
	}

	return nil
}

func (c *CachedRecordStore) List(ctx context.Context) ([]map[string]string, error) {
	return c.next.List(ctx)
}

func (c *CachedRecordStore) store(ctx context.Context, id string, record map[string]string) error {
	if len(record) == 0 {
		return nil
	}

	key := c.key(id)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, record)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})

	return err
}

func (c *CachedRecordStore) key(id string) string {
	return c.prefix + id
}
