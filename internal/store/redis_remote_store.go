package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RemoteDescriptor is the connection descriptor carried inside a
// TenantConfig. It is opaque to everything except this constructor.
type RemoteDescriptor struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ParseRemoteDescriptor strictly decodes a descriptor blob. Unknown fields
// and a missing address are both rejected.
func ParseRemoteDescriptor(raw json.RawMessage) (*RemoteDescriptor, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty remote store descriptor")
	}
	var desc RemoteDescriptor
	dec := jsonDecoderStrict(raw)
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("malformed remote store descriptor: %w", err)
	}
	if desc.Addr == "" {
		return nil, fmt.Errorf("remote store descriptor missing addr")
	}
	return &desc, nil
}

// RedisRemoteStore implements RemoteStore on Redis. A bulk Set writes the
// whole document as a string key; granular child writes go to a hash under
// the same path. Reads merge the two, which deliberately preserves the
// keyed-object / array duality the sync layer's listeners normalize. Every
// mutation publishes the path on a pub/sub channel to drive subscriptions.
type RedisRemoteStore struct {
	client       *redis.Client
	logger       *zap.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewRedisRemoteStore opens the tenant's remote store from its descriptor
func NewRedisRemoteStore(desc *RemoteDescriptor, dialTimeout, readTimeout, writeTimeout time.Duration, logger *zap.Logger) (*RedisRemoteStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        desc.Addr,
		Password:    desc.Password,
		DB:          desc.DB,
		DialTimeout: dialTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}

	return &RedisRemoteStore{
		client:       client,
		logger:       logger,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}, nil
}

func docKey(path string) string    { return "doc:" + path }
func itemsKey(path string) string  { return "items:" + path }
func eventsKey(path string) string { return "events:" + path }

// Get returns the merged document at path
func (s *RedisRemoteStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	var bulk json.RawMessage
	data, err := s.client.Get(ctx, docKey(path)).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("remote read failed: %w", err)
	}
	if err == nil {
		bulk = data
	}

	fields, err := s.client.HGetAll(ctx, itemsKey(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("remote read failed: %w", err)
	}

	children := make(map[string]json.RawMessage, len(fields))
	for id, v := range fields {
		children[id] = json.RawMessage(v)
	}

	return mergeDocument(bulk, children)
}

// Set overwrites the whole document at path
func (s *RedisRemoteStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docKey(path), []byte(value), 0)
	pipe.Del(ctx, itemsKey(path))
	pipe.Publish(ctx, eventsKey(path), path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remote write failed: %w", err)
	}
	return nil
}

// Delete removes the document and all child records at path
func (s *RedisRemoteStore) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, docKey(path), itemsKey(path))
	pipe.Publish(ctx, eventsKey(path), path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remote delete failed: %w", err)
	}
	return nil
}

// SetChild writes one record under path without touching siblings
func (s *RedisRemoteStore) SetChild(ctx context.Context, path, childID string, value json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, itemsKey(path), childID, []byte(value))
	pipe.Publish(ctx, eventsKey(path), path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remote item write failed: %w", err)
	}
	return nil
}

// DeleteChild removes one record under path
func (s *RedisRemoteStore) DeleteChild(ctx context.Context, path, childID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, itemsKey(path), childID)
	pipe.Publish(ctx, eventsKey(path), path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remote item delete failed: %w", err)
	}
	return nil
}

// Subscribe attaches a standing subscription to path. deliver fires with the
// current document immediately and again after every published change.
func (s *RedisRemoteStore) Subscribe(path string, deliver func(json.RawMessage, bool)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	pubsub := s.client.Subscribe(ctx, eventsKey(path))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	fire := func() {
		value, err := s.Get(ctx, path)
		if err != nil && err != ErrNotFound {
			s.logger.Warn("Subscription read failed",
				zap.String("path", path),
				zap.Error(err))
			return
		}
		deliver(value, err == nil)
	}

	go func() {
		defer pubsub.Close()

		fire()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				fire()
			}
		}
	}()

	return cancel, nil
}

// Ping checks the remote store connection
func (s *RedisRemoteStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the remote store client
func (s *RedisRemoteStore) Close() error {
	return s.client.Close()
}
