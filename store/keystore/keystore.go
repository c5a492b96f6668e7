// Package keystore persists signing keys across their full lifecycle: an
// active key per denomination that new issues sign against, plus its
// retired predecessors kept around for a retention window so that tokens
// issued under them still verify and redeem. A read-through LRU cache
// sits in front of storm for Get, since every verify, redeem and split
// operation resolves a key by id and the keys themselves rarely change.
// Active (the issue path) queries storm directly.
//
// Grounded on the typed storm.DB collection pattern from
// modules/explorergraphql/explorerdb/stormdb.go, with the LRU front-end
// borrowed from the pack's use of hashicorp/golang-lru as a bounded
// read-through cache.
package keystore

import (
	"fmt"
	"sync"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/chaumint/mintd/persist"
	"github.com/chaumint/mintd/types"
)

// Store is the signing key registry.
type Store struct {
	db        *storm.DB
	cache     *lru.Cache
	retention time.Duration
	log       *logrus.Entry

	rotMu sync.Mutex
	rotLk map[string]*sync.Mutex
}

// Open opens (creating if absent) the keystore at path. cacheSize bounds
// the read-through LRU's entry count; retention is how long an expired
// key is kept resolvable after its ExpiresAt before Sweep purges it.
func Open(path string, cacheSize int, retention time.Duration) (*Store, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", path, err)
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("keystore: new cache: %w", err)
	}
	return &Store{
		db:        db,
		cache:     cache,
		retention: retention,
		log:       persist.NewLogger("keystore"),
		rotLk:     make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RotationLock returns the mutex that serializes key synthesis for a
// single denomination. Two concurrent rotation ticks (or a tick racing a
// manual rotation trigger) for the same denomination must never both
// generate and activate a key; every other denomination proceeds
// independently.
func (s *Store) RotationLock(denominationID string) *sync.Mutex {
	s.rotMu.Lock()
	defer s.rotMu.Unlock()
	lk, ok := s.rotLk[denominationID]
	if !ok {
		lk = &sync.Mutex{}
		s.rotLk[denominationID] = lk
	}
	return lk
}

// Save persists a signing key (new or updated) and refreshes the cache.
func (s *Store) Save(k types.SigningKey) error {
	if err := s.db.Save(&k); err != nil {
		return fmt.Errorf("keystore: save %s: %w", k.ID, err)
	}
	s.cache.Add(k.ID, k)
	return nil
}

// Update persists changes to an existing key (e.g. deactivating it at
// rotation) and refreshes the cache.
func (s *Store) Update(k types.SigningKey) error {
	if err := s.db.Update(&k); err != nil {
		return fmt.Errorf("keystore: update %s: %w", k.ID, err)
	}
	s.cache.Add(k.ID, k)
	return nil
}

// Get resolves a key by id, regardless of whether it is still active.
// Callers decide what an expired-but-present key means for their
// operation (verify and redeem accept it; issue does not).
func (s *Store) Get(id string) (types.SigningKey, error) {
	if v, ok := s.cache.Get(id); ok {
		return v.(types.SigningKey), nil
	}
	var k types.SigningKey
	if err := s.db.One("ID", id, &k); err != nil {
		if err == storm.ErrNotFound {
			return types.SigningKey{}, types.ErrUnknownKey
		}
		return types.SigningKey{}, err
	}
	s.cache.Add(id, k)
	return k, nil
}

// Active returns the single active, non-expired signing key for a
// denomination as of now. A denomination has at most one active key at a
// time; rotation deactivates the old key and activates the new one inside
// the same lock. A key that is still flagged active but whose ExpiresAt
// has already passed — possible between rotation ticks — is treated as
// absent, per spec §4.3's "non-expired SigningKey": this method
// opportunistically deactivates it so it can later be swept, and returns
// ErrMissingKeyForActiveDenomination so the caller synthesizes a
// replacement rather than signing under an expired key.
func (s *Store) Active(denominationID string, now time.Time) (types.SigningKey, error) {
	var matches []types.SigningKey
	err := s.db.Select(q.Eq("DenominationID", denominationID), q.Eq("Active", true)).Find(&matches)
	if err != nil && err != storm.ErrNotFound {
		return types.SigningKey{}, err
	}

	var best *types.SigningKey
	for i := range matches {
		k := matches[i]
		if k.Expired(now) {
			k.Active = false
			if err := s.Update(k); err != nil {
				return types.SigningKey{}, err
			}
			continue
		}
		// Exactly one non-expired match is expected; if rotation ever
		// raced this badly, take the most recently created and let the
		// caller's self-check catch it.
		if best == nil || k.CreatedAt.After(best.CreatedAt) {
			best = &k
		}
	}
	if best == nil {
		return types.SigningKey{}, types.ErrMissingKeyForActiveDenomination
	}
	return *best, nil
}

// Sweep purges keys that are inactive and whose retention window (expiry
// plus the configured retention) has passed as of now. It returns the
// number of keys removed.
func (s *Store) Sweep(now time.Time) (int, error) {
	var candidates []types.SigningKey
	err := s.db.Select(q.Eq("Active", false)).Find(&candidates)
	if err != nil && err != storm.ErrNotFound {
		return 0, err
	}

	removed := 0
	for _, k := range candidates {
		if now.Before(k.ExpiresAt.Add(s.retention)) {
			continue
		}
		if err := s.db.DeleteStruct(&k); err != nil {
			return removed, fmt.Errorf("keystore: sweep %s: %w", k.ID, err)
		}
		s.cache.Remove(k.ID)
		removed++
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("swept expired signing keys")
	}
	return removed, nil
}
