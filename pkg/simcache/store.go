package simcache

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Key prefixes for the two content-addressed hash tiers. Entries are naturally
// deduplicated by content addressing, so neither tier is evicted.
const (
	exactPrefix      = "e:"
	normalizedPrefix = "n:"
)

// storedEntry is the on-disk value for a hash-tier key.
type storedEntry struct {
	Vector    []float32 `msgpack:"v"`
	Excerpt   string    `msgpack:"x"`
	CreatedAt int64     `msgpack:"t"`
}

// Store is the badger-backed key/value layer behind the exact and normalized
// cache tiers. A Store whose underlying database has failed degrades to
// "always miss": lookups return not-found and writes are dropped, because
// cache unavailability is a performance concern, not a correctness one.
type Store struct {
	db       *badger.DB
	degraded atomic.Bool
	errCount atomic.Int64
}

// OpenStore opens the hash-tier store at dir. An empty dir opens an in-memory
// badger instance (tests, ephemeral runs).
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// get returns the entry stored under prefix+hash, or false on miss. Storage
// errors degrade to a miss.
func (s *Store) get(prefix, hash string) (storedEntry, bool) {
	if s.degraded.Load() {
		return storedEntry{}, false
	}
	var entry storedEntry
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := msgpack.Unmarshal(val, &entry); err != nil {
				// Corrupt entry: treat as miss, leave the key for overwrite.
				log.Printf("SimCache: corrupt entry under %s%s: %v", prefix, hash[:12], err)
				return nil
			}
			found = len(entry.Vector) > 0
			return nil
		})
	})
	if err != nil {
		s.noteError("read", err)
		return storedEntry{}, false
	}
	return entry, found
}

// put stores entry under every prefix+hash pair in one write batch.
func (s *Store) put(entry storedEntry, keys ...string) {
	if s.degraded.Load() || len(keys) == 0 {
		return
	}
	data, err := msgpack.Marshal(&entry)
	if err != nil {
		s.noteError("encode", err)
		return
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Set([]byte(key), data); err != nil {
			s.noteError("write", err)
			return
		}
	}
	if err := wb.Flush(); err != nil {
		s.noteError("flush", err)
	}
}

// noteError records a storage failure. The first few are logged; a store that
// keeps failing is marked degraded so the hot path stops paying for it.
func (s *Store) noteError(op string, err error) {
	n := s.errCount.Add(1)
	if n <= 3 {
		log.Printf("SimCache: storage %s failed (degrading to miss): %v", op, err)
	}
	if n >= 10 {
		s.degraded.Store(true)
	}
}

func now() int64 { return time.Now().UnixNano() }
