package settings

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v7"
	"github.com/juju/errors"
)

const maxUpdateAttempts = 5

// RedisStore keeps the snapshot as JSON under a single key so it survives
// restarts and can be shared by several producer processes of one user.
type RedisStore struct {
	client  *redis.Client
	key     string
	initial Snapshot
}

var _ Store = &RedisStore{}

// NewRedisStore stores the snapshot under prefix + ":settings". Initial is
// returned until the first Update.
func NewRedisStore(client *redis.Client, prefix string, initial Snapshot) *RedisStore {
	return &RedisStore{
		client:  client,
		key:     prefix + ":settings",
		initial: initial,
	}
}

func (r *RedisStore) decode(value string, err error) (Snapshot, error) {
	if errors.Cause(err) == redis.Nil {
		return r.initial, nil
	}

	if err != nil {
		return Snapshot{}, errors.Annotatef(err, "get %s", r.key)
	}

	snapshot := r.initial

	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		return Snapshot{}, errors.Annotatef(err, "decode %s", r.key)
	}

	return snapshot, nil
}

func (r *RedisStore) Get(ctx context.Context) (Snapshot, error) {
	return r.decode(r.client.WithContext(ctx).Get(r.key).Result())
}

// Update runs fn inside a WATCH transaction and retries when another writer
// changed the key in between.
func (r *RedisStore) Update(ctx context.Context, fn func(Snapshot) Snapshot) (Snapshot, error) {
	client := r.client.WithContext(ctx)

	var result Snapshot

	txf := func(tx *redis.Tx) error {
		current, err := r.decode(tx.Get(r.key).Result())
		if err != nil {
			return errors.Trace(err)
		}

		next := fn(current)

		value, err := json.Marshal(next)
		if err != nil {
			return errors.Annotatef(err, "encode %s", r.key)
		}

		_, err = tx.TxPipelined(func(pipe redis.Pipeliner) error {
			pipe.Set(r.key, value, 0)

			return nil
		})
		if err != nil {
			return err
		}

		result = next

		return nil
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := client.Watch(txf, r.key)
		if err == redis.TxFailedErr {
			continue
		}

		if err != nil {
			return Snapshot{}, errors.Annotatef(err, "update %s", r.key)
		}

		return result, nil
	}

	return Snapshot{}, errors.Errorf("update %s: too many concurrent writers", r.key)
}
