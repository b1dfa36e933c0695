// Package settings persists small typed device settings across reboots.
// Values are msgpack encoded in a BadgerDB keyspace, grouped by namespace
// the way firmware groups NVS entries.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("settings: not found")

// Options configures a Store.
type Options struct {
	// Dir is the directory for data files. Required unless InMemory.
	Dir string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// Logger receives badger's internal logs. Defaults to slog at debug
	// level.
	Logger badger.Logger
}

// Store is a namespaced settings store. The zero namespace is the root;
// Namespace derives views sharing the same database.
type Store struct {
	db *badger.DB
	ns string
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("settings: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(slogBadger{slog.Default()})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("settings: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Namespace returns a view of the store with keys prefixed by ns. Nested
// namespaces chain with a slash.
func (s *Store) Namespace(ns string) *Store {
	if s.ns != "" {
		ns = s.ns + "/" + ns
	}
	return &Store{db: s.db, ns: ns}
}

func (s *Store) key(key string) []byte {
	if s.ns == "" {
		return []byte(key)
	}
	return []byte(s.ns + "/" + key)
}

// Get decodes the value stored under key into out.
func (s *Store) Get(key string, out any) error {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("settings: get %q: %w", key, err)
	}
	if err := msgpack.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("settings: decode %q: %w", key, err)
	}
	return nil
}

// Put stores v under key.
func (s *Store) Put(key string, v any) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("settings: encode %q: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), raw)
	})
	if err != nil {
		return fmt.Errorf("settings: put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil {
		return fmt.Errorf("settings: delete %q: %w", key, err)
	}
	return nil
}

// Keys lists the keys in this namespace, without the namespace prefix.
func (s *Store) Keys() ([]string, error) {
	var prefix []byte
	if s.ns != "" {
		prefix = []byte(s.ns + "/")
	}
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().KeyCopy(nil))
			keys = append(keys, strings.TrimPrefix(k, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settings: keys: %w", err)
	}
	return keys, nil
}

// GetString returns the string stored under key and whether it was found.
func (s *Store) GetString(key string) (string, bool) {
	var v string
	if err := s.Get(key, &v); err != nil {
		return "", false
	}
	return v, true
}

// PutString stores a string under key.
func (s *Store) PutString(key, value string) error {
	return s.Put(key, value)
}

// GetInt returns the int stored under key and whether it was found.
func (s *Store) GetInt(key string) (int, bool) {
	var v int
	if err := s.Get(key, &v); err != nil {
		return 0, false
	}
	return v, true
}

// PutInt stores an int under key.
func (s *Store) PutInt(key string, value int) error {
	return s.Put(key, value)
}

// Close flushes and closes the underlying database. Only the root store
// should be closed.
func (s *Store) Close() error {
	return s.db.Close()
}

// slogBadger adapts slog to badger's logger. Badger is chatty, so
// everything lands at debug except errors.
type slogBadger struct {
	log *slog.Logger
}

func (l slogBadger) Errorf(format string, args ...any) {
	l.log.Error("settings: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l slogBadger) Warningf(format string, args ...any) {
	l.log.Warn("settings: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l slogBadger) Infof(format string, args ...any) {
	l.log.Debug("settings: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l slogBadger) Debugf(format string, args ...any) {
	l.log.Debug("settings: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
