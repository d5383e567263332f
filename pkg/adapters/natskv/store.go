// Package natskv stores snapshots in a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/nats-io/nats.go"
)

// DefaultBucket is the bucket created when none is configured.
const DefaultBucket = "WAYPOINT_SNAPSHOTS"

// Config configures the JetStream key-value store.
type Config struct {
	URL    string
	Bucket string
	// History is the number of revisions kept per key (default 1).
	History uint8
	Conn    *nats.Conn
}

// Store implements ports.Store on a JetStream KeyValue bucket.
// Keys are base64url encoded since bucket keys only allow a restricted alphabet.
type Store struct {
	kv       nats.KeyValue
	conn     *nats.Conn
	ownsConn bool
}

var (
	_ ports.Store  = (*Store)(nil)
	_ ports.Lister = (*Store)(nil)
)

// New connects (unless cfg.Conn is set) and binds or creates the bucket.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.History == 0 {
		cfg.History = 1
	}

	conn := cfg.Conn
	owns := false
	if conn == nil {
		url := cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		var err error
		conn, err = nats.Connect(url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		owns = true
	}

	js, err := conn.JetStream()
	if err != nil {
		if owns {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to open jetstream context: %w", err)
	}

	kv, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.Bucket, History: cfg.History})
	}
	if err != nil {
		if owns {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to bind bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{kv: kv, conn: conn, ownsConn: owns}, nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Set puts the value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.kv.Put(encodeKey(key), []byte(value)); err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	return nil
}

// Get returns the latest value of key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	entry, err := s.kv.Get(encodeKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return "", domain.ErrSnapshotNotFound
		}
		return "", fmt.Errorf("failed to get snapshot: %w", err)
	}
	return string(entry.Value()), nil
}

// Remove purges key and its history.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.kv.Purge(encodeKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to purge snapshot: %w", err)
	}
	return nil
}

// Keys returns every live key in sorted order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	encoded, err := s.kv.Keys(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	keys := make([]string, 0, len(encoded))
	for _, k := range encoded {
		raw, err := base64.RawURLEncoding.DecodeString(k)
		if err != nil {
			continue // not written by this store
		}
		keys = append(keys, string(raw))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the connection when the store opened it.
func (s *Store) Close() {
	if s.ownsConn {
		s.conn.Close()
	}
}
