// Package ledger is the mint's one strict-consistency component: the
// double-spend defense. CheckAndMark runs the "is this token already
// spent, and if not, mark it spent" check inside a single bbolt write
// transaction, so two concurrent redemptions of the same token can never
// both succeed — bbolt serializes all writers, and the read and the write
// happen inside one transaction's lock.
//
// Denomination and batch counters live alongside the spent-token bucket
// in the same file but are not part of that atomicity guarantee: they are
// approximate aggregates, eventually consistent with the spent-token
// bucket, never required to commit atomically with it.
//
// Grounded on persist.BoltDatabase (itself adapted from the teacher's
// persist package) for the transactional primitive.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/chaumint/mintd/persist"
	"github.com/chaumint/mintd/types"
)

var (
	bucketSpent         = []byte("SpentTokens")
	bucketDenomCounters = []byte("DenomCounters")
	bucketBatchCounters = []byte("BatchCounters")
	bucketAudit         = []byte("AuditRecords")
)

// Store is the spent-token ledger and its supporting counters.
type Store struct {
	db  *persist.BoltDatabase
	log *logrus.Entry
}

// Open opens (creating if absent) the ledger at path.
func Open(path string) (*Store, error) {
	db, err := persist.OpenDatabase(persist.Metadata{Header: "ChaumintLedger", Version: "1.0"}, path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSpent, bucketDenomCounters, bucketBatchCounters, bucketAudit} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init buckets: %w", err)
	}
	return &Store{db: db, log: persist.NewLogger("ledger")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckAndMark atomically verifies that record.TokenID has not already
// been spent and, if so, records it as spent. Returns types.ErrAlreadySpent
// if the token id is already present — the caller must surface this
// distinctly, never retry it, and never treat it as a transient failure.
func (s *Store) CheckAndMark(record types.SpentRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSpent)
		key := []byte(record.TokenID)
		if existing := bucket.Get(key); existing != nil {
			return types.ErrAlreadySpent
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// IsSpent reports whether a token id has already been redeemed.
func (s *Store) IsSpent(tokenID types.TokenID) (bool, error) {
	var spent bool
	err := s.db.View(func(tx *bolt.Tx) error {
		spent = tx.Bucket(bucketSpent).Get([]byte(tokenID)) != nil
		return nil
	})
	return spent, err
}

// SpentRecordFor returns the stored spend record for a token id, if any.
func (s *Store) SpentRecordFor(tokenID types.TokenID) (types.SpentRecord, bool, error) {
	var rec types.SpentRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSpent).Get([]byte(tokenID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// BumpMinted increments a denomination's minted counter by delta.
func (s *Store) BumpMinted(denominationID string, delta uint64, now time.Time) error {
	return s.bumpCounter(denominationID, now, func(c *types.DenominationCounter) {
		c.MintedCount += delta
	})
}

// BumpRedeemed increments a denomination's redeemed counter by delta.
func (s *Store) BumpRedeemed(denominationID string, delta uint64, now time.Time) error {
	return s.bumpCounter(denominationID, now, func(c *types.DenominationCounter) {
		c.RedeemedCount += delta
	})
}

func (s *Store) bumpCounter(denominationID string, now time.Time, mutate func(*types.DenominationCounter)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketDenomCounters)
		key := []byte(denominationID)
		var counter types.DenominationCounter
		if data := bucket.Get(key); data != nil {
			if err := json.Unmarshal(data, &counter); err != nil {
				return err
			}
		} else {
			counter = types.DenominationCounter{DenominationID: denominationID}
		}
		mutate(&counter)
		counter.LastUpdated = now
		data, err := json.Marshal(counter)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// DenomCounter returns the current aggregate for a denomination.
func (s *Store) DenomCounter(denominationID string) (types.DenominationCounter, error) {
	var counter types.DenominationCounter
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDenomCounters).Get([]byte(denominationID))
		if data == nil {
			counter = types.DenominationCounter{DenominationID: denominationID}
			return nil
		}
		return json.Unmarshal(data, &counter)
	})
	return counter, err
}

// BumpBatch upserts a per-batch counter, adding deltaTotal to its minted
// total and deltaRedeemed to its redeemed total.
func (s *Store) BumpBatch(batchID, currency string, deltaTotal, deltaRedeemed uint64, now time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBatchCounters)
		key := []byte(batchID)
		var counter types.BatchCounter
		if data := bucket.Get(key); data != nil {
			if err := json.Unmarshal(data, &counter); err != nil {
				return err
			}
		} else {
			counter = types.BatchCounter{BatchID: batchID, Currency: currency, CreatedAt: now}
		}
		counter.TotalValue += deltaTotal
		counter.RedeemedValue += deltaRedeemed
		counter.LastUpdated = now
		data, err := json.Marshal(counter)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// BatchCounterFor returns the current aggregate for a batch id.
func (s *Store) BatchCounterFor(batchID string) (types.BatchCounter, error) {
	var counter types.BatchCounter
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBatchCounters).Get([]byte(batchID))
		if data == nil {
			counter = types.BatchCounter{BatchID: batchID}
			return nil
		}
		return json.Unmarshal(data, &counter)
	})
	return counter, err
}

// RecordAudit persists an audit row linking a consumed input token to the
// output tokens a split or remint produced from it.
func (s *Store) RecordAudit(rec types.AuditRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAudit).Put([]byte(rec.InputTokenID), data)
	})
}

// AuditFor returns the audit row for a given input token id, if any.
func (s *Store) AuditFor(inputTokenID string) (types.AuditRecord, bool, error) {
	var rec types.AuditRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAudit).Get([]byte(inputTokenID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}
