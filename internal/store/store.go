// Package store persists trained classification models in BadgerDB.
//
// Models are keyed by a caller-chosen name under the "model/" prefix; the
// value is the model's gob encoding. There is no versioning: saving under an
// existing name replaces it.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
)

const keyPrefix = "model/"

// ErrNotFound is returned when no model is stored under a name.
var ErrNotFound = errors.New("model not found")

// ErrInvalidName is returned for names that are empty, too long or contain
// characters outside [A-Za-z0-9._-].
var ErrInvalidName = errors.New("invalid model name")

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests and by the server
	// when no path is configured.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// InMemoryConfig returns a Config for a throwaway store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// ModelInfo describes a stored model without decoding it.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ModelStore is a named collection of trained models.
type ModelStore struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open opens or creates the store.
func Open(cfg Config) (*ModelStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger database: %w", err)
	}
	return &ModelStore{db: db}, nil
}

// Close releases the database.
func (s *ModelStore) Close() error {
	return s.db.Close()
}

// Save stores m under name, replacing any previous model of that name.
func (s *ModelStore) Save(name string, m *classifier.Model) error {
	if err := validName(name); err != nil {
		return err
	}
	if m == nil {
		return errors.New("store: nil model")
	}
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(name), data)
	})
	if err != nil {
		return fmt.Errorf("store: save %s: %w", name, err)
	}
	return nil
}

// Load decodes the model stored under name.
func (s *ModelStore) Load(name string) (*classifier.Model, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("store: %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", name, err)
	}

	m := &classifier.Model{}
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", name, err)
	}
	return m, nil
}

// Delete removes the model stored under name.
func (s *ModelStore) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("store: %s: %w", name, ErrNotFound)
			}
			return err
		}
		return txn.Delete(key(name))
	})
}

// List returns every stored model, sorted by name.
func (s *ModelStore) List() ([]ModelInfo, error) {
	var out []ModelInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			out = append(out, ModelInfo{
				Name: strings.TrimPrefix(string(item.Key()), keyPrefix),
				Size: item.ValueSize(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func key(name string) []byte { return []byte(keyPrefix + name) }

func validName(name string) error {
	if name == "" || len(name) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
