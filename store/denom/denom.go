// Package denom persists the denomination ladder: the fixed set of value
// tiers a mint issues and redeems tokens for. Bootstrap creates the ladder
// once; after that it is read-mostly, with Active toggled as denominations
// are retired.
//
// Grounded on the typed storm.DB usage in
// modules/explorergraphql/explorerdb's StormDB wrapper, scaled down to a
// single flat collection instead of storm's node hierarchy since the
// denomination ladder has no nested relations to model.
package denom

import (
	"fmt"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/sirupsen/logrus"

	"github.com/chaumint/mintd/persist"
	"github.com/chaumint/mintd/types"
)

// Store is the denomination registry.
type Store struct {
	db  *storm.DB
	log *logrus.Entry
}

// Open opens (creating if absent) the denomination registry at path.
func Open(path string) (*Store, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, fmt.Errorf("denom: open %s: %w", path, err)
	}
	return &Store{db: db, log: persist.NewLogger("denom")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists a new denomination. Returns an error if one with the
// same id already exists.
func (s *Store) Create(d types.Denomination) error {
	if err := s.db.Save(&d); err != nil {
		return fmt.Errorf("denom: create %s: %w", d.ID, err)
	}
	s.log.WithFields(logrus.Fields{"id": d.ID, "value": d.Value, "currency": d.Currency}).Info("denomination created")
	return nil
}

// Get looks up a denomination by id.
func (s *Store) Get(id string) (types.Denomination, error) {
	var d types.Denomination
	if err := s.db.One("ID", id, &d); err != nil {
		if err == storm.ErrNotFound {
			return types.Denomination{}, types.ErrDenominationNotFound
		}
		return types.Denomination{}, err
	}
	return d, nil
}

// GetByValue looks up an active denomination by value and currency.
func (s *Store) GetByValue(value uint64, currency string) (types.Denomination, error) {
	var matches []types.Denomination
	err := s.db.Select(q.Eq("Value", value), q.Eq("Currency", currency), q.Eq("Active", true)).Find(&matches)
	if err != nil {
		if err == storm.ErrNotFound {
			return types.Denomination{}, types.ErrDenominationNotFound
		}
		return types.Denomination{}, err
	}
	if len(matches) == 0 {
		return types.Denomination{}, types.ErrDenominationNotFound
	}
	return matches[0], nil
}

// ListActive returns every active denomination for a currency, ascending
// by value. The change maker sorts its own copy descending for its
// greedy largest-first walk.
func (s *Store) ListActive(currency string) ([]types.Denomination, error) {
	var matches []types.Denomination
	err := s.db.Select(q.Eq("Currency", currency), q.Eq("Active", true)).OrderBy("Value").Find(&matches)
	if err != nil && err != storm.ErrNotFound {
		return nil, err
	}
	return matches, nil
}

// Smallest returns the smallest active denomination for a currency — the
// resolution target of a Default selector.
func (s *Store) Smallest(currency string) (types.Denomination, error) {
	active, err := s.ListActive(currency)
	if err != nil {
		return types.Denomination{}, err
	}
	if len(active) == 0 {
		return types.Denomination{}, types.ErrNoActiveDenomination
	}
	return active[0], nil
}

// Deactivate marks a denomination inactive. It is never deleted: expired
// denominations retain their id so historical keys and spent-records keep
// resolving.
func (s *Store) Deactivate(id string) error {
	d, err := s.Get(id)
	if err != nil {
		return err
	}
	d.Active = false
	if err := s.db.Update(&d); err != nil {
		return fmt.Errorf("denom: deactivate %s: %w", id, err)
	}
	return nil
}
