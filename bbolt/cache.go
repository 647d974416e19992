// Package bbolt caches query rankings in a bbolt file. The cache is
// regenerable: entries are keyed by catalog generation, so any catalog
// mutation makes older entries unreachable.
package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docpilot"
	"github.com/fwojciec/docpilot/bloom"
	bolt "go.etcd.io/bbolt"
)

// Ensure QueryCache implements docpilot.QueryCache at compile time.
var _ docpilot.QueryCache = (*QueryCache)(nil)

const bucketName = "rankings"

// Filter sizing for the known-keys set.
const (
	expectedKeys = 10000
	falsePosRate = 0.01
)

// QueryCache implements docpilot.QueryCache on a bbolt database.
type QueryCache struct {
	db   *bolt.DB
	path string

	mu    sync.Mutex
	known *bloom.Filter
}

// NewQueryCache creates a new QueryCache stored at path.
func NewQueryCache(path string) *QueryCache {
	return &QueryCache{
		path:  path,
		known: bloom.NewFilter(expectedKeys, falsePosRate),
	}
}

// Path returns the location of the cache file.
func (c *QueryCache) Path() string {
	return c.path
}

// Open opens the cache file, creating it and its directory if needed, and
// loads the existing keys into the filter.
func (c *QueryCache) Open() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(c.path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, _ []byte) error {
			c.known.Add(k)
			return nil
		})
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to load cache: %w", err)
	}

	c.db = db
	return nil
}

// Close closes the cache file.
func (c *QueryCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Key returns the cache key of req at the given generation: the generation
// as a big-endian prefix followed by a hash of the normalized request.
func Key(generation int64, req docpilot.QueryRequest) []byte {
	normalized := fmt.Sprintf("%s\x00%d\x00%d\x00%d", strings.Join(strings.Fields(req.Text), " "), req.TopK, req.Final, req.RecallLimit)
	key := binary.BigEndian.AppendUint64(nil, uint64(generation))
	return binary.BigEndian.AppendUint64(key, xxhash.Sum64String(normalized))
}

// Get returns the cached ranking for req, or nil on a miss.
func (c *QueryCache) Get(ctx context.Context, generation int64, req docpilot.QueryRequest) (*docpilot.Ranking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := Key(generation, req)
	c.mu.Lock()
	maybe := c.known.Test(key)
	c.mu.Unlock()
	if !maybe {
		return nil, nil
	}

	var ranking *docpilot.Ranking
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		data := bucket.Get(key)
		if data == nil {
			return nil
		}
		ranking = &docpilot.Ranking{}
		return json.Unmarshal(data, ranking)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return ranking, nil
}

// Put stores ranking for req and drops entries of older generations.
func (c *QueryCache) Put(ctx context.Context, generation int64, req docpilot.QueryRequest, ranking *docpilot.Ranking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ranking)
	if err != nil {
		return fmt.Errorf("failed to encode ranking: %w", err)
	}

	key := Key(generation, req)
	prefix := key[:8]

	var kept [][]byte
	var pruned int
	err = c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}

		var stale [][]byte
		cur := bucket.Cursor()
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			if bytes.Compare(k[:min(len(k), 8)], prefix) < 0 {
				stale = append(stale, bytes.Clone(k))
				continue
			}
			kept = append(kept, bytes.Clone(k))
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		pruned = len(stale)

		return bucket.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pruned > 0 {
		c.known.Reset()
		for _, k := range kept {
			c.known.Add(k)
		}
	}
	c.known.Add(key)
	return nil
}

// Len returns the number of cached rankings.
func (c *QueryCache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}
