package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"squish/logger"
	"squish/models"

	pebble "github.com/cockroachdb/pebble"
)

// Cap is the maximum number of entries the store keeps. Inserting past
// the cap evicts the oldest-timestamp entries first.
const Cap = 100

// Entry is one past compression, keyed by id with a secondary ascending
// timestamp ordering used for newest-first retrieval and eviction scans.
type Entry struct {
	ID             string        `json:"id"`
	Timestamp      int64         `json:"timestamp"` // unix ms
	OriginalName   string        `json:"original_name"`
	OriginalSize   int           `json:"original_size"`
	CompressedSize int           `json:"compressed_size"`
	Format         models.Format `json:"format"`
	Quality        int           `json:"quality"`
}

var (
	db *pebble.DB
	mu sync.Mutex
)

// Init opens the history store at dbPath.
func Init(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	return nil
}

// Close closes the history store.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// Add inserts an entry, evicting the oldest-timestamp entries first when
// the store is at capacity. Eviction and insert commit as one pebble
// batch, so no over-cap state is ever observable. History is
// best-effort: failures are logged and reported as false, never raised.
func Add(e Entry) bool {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		logger.Warn("history store not initialized; entry dropped")
		return false
	}

	entries, err := listLocked()
	if err != nil {
		logger.Errorf("history add failed: %v", err)
		return false
	}

	batch := db.NewBatch()
	if len(entries) >= Cap {
		// oldest first; evict exactly enough to free one slot
		sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp < entries[j].Timestamp })
		for _, old := range entries[:len(entries)-Cap+1] {
			if err := batch.Delete([]byte(old.ID), nil); err != nil {
				logger.Errorf("history eviction failed for %s: %v", old.ID, err)
				batch.Close()
				return false
			}
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		logger.Errorf("failed to marshal history entry %s: %v", e.ID, err)
		batch.Close()
		return false
	}
	if err := batch.Set([]byte(e.ID), data, nil); err != nil {
		logger.Errorf("history insert failed for %s: %v", e.ID, err)
		batch.Close()
		return false
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Errorf("history commit failed for %s: %v", e.ID, err)
		return false
	}
	return true
}

// Get retrieves an entry by id. Returns (nil, nil) when absent.
func Get(id string) (*Entry, error) {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}

	data, closer, err := db.Get([]byte(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	defer closer.Close()

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
	}
	return &e, nil
}

// GetAll returns every entry ordered newest-timestamp-first.
func GetAll() ([]Entry, error) {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}

	entries, err := listLocked()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp > entries[j].Timestamp })
	return entries, nil
}

// Delete removes an entry by id. Deleting a missing id is not an error.
func Delete(id string) error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return fmt.Errorf("history store not initialized")
	}
	return db.Delete([]byte(id), pebble.Sync)
}

// Clear removes every entry. Idempotent.
func Clear() error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return fmt.Errorf("history store not initialized")
	}

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}

	batch := db.NewBatch()
	for iter.First(); iter.Valid(); iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		if err := batch.Delete(key, nil); err != nil {
			iter.Close()
			batch.Close()
			return fmt.Errorf("failed to clear history: %w", err)
		}
	}
	if err := iter.Close(); err != nil {
		batch.Close()
		return fmt.Errorf("iteration error: %w", err)
	}
	return batch.Commit(pebble.Sync)
}

// Count returns the number of stored entries.
func Count() (int, error) {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("history store not initialized")
	}
	entries, err := listLocked()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// listLocked reads every entry. Caller holds mu.
func listLocked() ([]Entry, error) {
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue // skip invalid records
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return entries, nil
}
