package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/assetforge/internal/logger"
)

// index is a BadgerDB-backed secondary index over a branch directory. It
// exists purely as a fast path: everything it stores is derivable by
// rereading the manifest, so a missing or corrupt index entry just falls
// back to the filesystem rather than failing the request.
//
// Key namespace:
//
//	"h:" + sanitized request name  -> content hash (uint64, binary)
//	"x:" + sanitized request name  -> JSON failure reason, marks an invalid asset
type index struct {
	db *badger.DB
}

const (
	indexHashPrefix    = "h:"
	indexInvalidPrefix = "x:"
)

func openIndex(branchDir string) (*index, error) {
	opts := badger.DefaultOptions(filepath.Join(branchDir, ".index")).
		WithLogger(nil).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store index: %w", err)
	}
	return &index{db: db}, nil
}

func (ix *index) Close() error {
	return ix.db.Close()
}

func (ix *index) recordHash(sanitizedRequest string, hash uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, hash)
	err := ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(indexHashPrefix+sanitizedRequest), buf)
	})
	if err != nil {
		logger.Warn("failed to update store index", logger.Err(err))
	}
}

func (ix *index) lookupHash(sanitizedRequest string) (uint64, bool) {
	var hash uint64
	found := false
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexHashPrefix + sanitizedRequest))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return nil
			}
			hash = binary.LittleEndian.Uint64(val)
			found = true
			return nil
		})
	})
	if err != nil {
		logger.Warn("failed to read store index", logger.Err(err))
		return 0, false
	}
	return hash, found
}

// invalidAssetRecord is the diagnostic payload stored for a request that
// failed compilation, so later lookups can surface the failure reason
// without re-running the compiler.
type invalidAssetRecord struct {
	Reason string `json:"reason"`
}

func (ix *index) markInvalid(sanitizedRequest, reason string) {
	payload, err := json.Marshal(invalidAssetRecord{Reason: reason})
	if err != nil {
		return
	}
	err = ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(indexInvalidPrefix+sanitizedRequest), payload)
	})
	if err != nil {
		logger.Warn("failed to record invalid asset", logger.Err(err))
	}
}

func (ix *index) clearInvalid(sanitizedRequest string) {
	err := ix.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(indexInvalidPrefix + sanitizedRequest))
	})
	if err != nil {
		logger.Warn("failed to clear invalid asset record", logger.Err(err))
	}
}

// InvalidAssetEntry is one request name recorded as having last failed
// compilation, plus the reason stored alongside it.
type InvalidAssetEntry struct {
	RequestName string
	Reason      string
}

// listInvalid returns every request currently recorded as invalid, for
// Store.InvalidAssets. This is purely the informational sidecar list
// (§4.C): it never gates RetrieveCompileProducts.
func (ix *index) listInvalid() []InvalidAssetEntry {
	var entries []InvalidAssetEntry
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexInvalidPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), indexInvalidPrefix)
			var rec invalidAssetRecord
			_ = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			entries = append(entries, InvalidAssetEntry{RequestName: name, Reason: rec.Reason})
		}
		return nil
	})
	if err != nil {
		logger.Warn("failed to list invalid assets", logger.Err(err))
		return nil
	}
	return entries
}
