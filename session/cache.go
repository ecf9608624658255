package session

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/mrtask"
)

// PlanCache caches compiled task plans keyed on query structure plus the
// session options that influence plan shape, backed by badger so entries
// survive process restarts and expire via badger's own TTL rather than a
// lazily-swept in-memory map.
type PlanCache struct {
	db  *badger.DB
	ttl time.Duration

	hits   int64
	misses int64
}

// OpenPlanCache opens (creating if necessary) a badger-backed plan cache
// rooted at dir. An empty dir opens an in-memory-only store, useful for
// tests and for sessions that don't want cache persistence.
func OpenPlanCache(dir string, ttl time.Duration) (*PlanCache, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening plan cache: %w", err)
	}
	return &PlanCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying badger handle.
func (c *PlanCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Key computes the deterministic cache key for root under cfg: a SHA-256
// digest over the query's rendered AST text plus every option that can
// change the resulting plan's shape.
func Key(root ast.Node, cfg *Config) string {
	h := sha256.New()
	fmt.Fprintf(h, "AST:%s;", ast.String(root))
	fmt.Fprintf(h, "PartitionPruner:%s;", cfg.PartitionPruner)
	fmt.Fprintf(h, "MapSideAggregate:%v;", cfg.MapSideAggregate)
	fmt.Fprintf(h, "MapAggrHashMemory:%v;", cfg.MapAggrHashMemory)
	fmt.Fprintf(h, "CompressResult:%v;", cfg.CompressResult)
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up a previously cached plan for key. A badger ErrKeyNotFound
// (including TTL expiry, which badger enforces on read) counts as a miss.
func (c *PlanCache) Get(key string) (*mrtask.Plan, bool) {
	if c == nil || c.db == nil {
		return nil, false
	}
	var plan mrtask.Plan
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gobDecode(val, &plan)
		})
	})
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return &plan, true
}

// Set stores plan under key with this cache's configured TTL.
func (c *PlanCache) Set(key string, plan *mrtask.Plan) error {
	if c == nil || c.db == nil || plan == nil {
		return nil
	}
	buf, err := gobEncode(plan)
	if err != nil {
		return fmt.Errorf("encoding cached plan: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), buf).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
}

// Stats returns hit/miss counters and the number of entries currently live.
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil || c.db == nil {
		return 0, 0, 0
	}
	hits = atomic.LoadInt64(&c.hits)
	misses = atomic.LoadInt64(&c.misses)
	_ = c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	return hits, misses, size
}

func gobEncode(plan *mrtask.Plan) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(plan); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, plan *mrtask.Plan) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(plan)
}
