// Package persist provides a metadata-stamped bbolt database handle (used
// by the ledger; the denom and keystore packages open storm files
// directly) plus the per-component logger every store package uses,
// grounded on the teacher's own persist package.
package persist

import (
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// ErrBadHeader is returned when an on-disk database's header does not
	// match what the opening caller expects.
	ErrBadHeader = errors.New("persist: database header mismatch")
	// ErrBadVersion is returned when an on-disk database's version does
	// not match what the opening caller expects.
	ErrBadVersion = errors.New("persist: database version mismatch")
)

// Metadata identifies the logical database a BoltDatabase file holds, so
// that opening a file stamped for a different database fails loudly
// instead of silently misreading buckets.
type Metadata struct {
	Header  string
	Version string
}

// BoltDatabase is a persist-level wrapper for the bolt database, stamping
// it with Metadata on first use and verifying that stamp on every
// subsequent open.
type BoltDatabase struct {
	Metadata
	*bolt.DB
}

// SaveMetadata overwrites the metadata.
func (db *BoltDatabase) SaveMetadata() error {
	return db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte("Metadata"))
		if bucket == nil {
			return db.updateMetadata(tx)
		}
		if err := bucket.Put([]byte("Header"), []byte(db.Header)); err != nil {
			return err
		}
		return bucket.Put([]byte("Version"), []byte(db.Version))
	})
}

// checkMetadata confirms that the metadata in the database is correct. If
// there is no metadata, correct metadata is inserted.
func (db *BoltDatabase) checkMetadata(md Metadata) error {
	return db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte("Metadata"))
		if bucket == nil {
			return db.updateMetadata(tx)
		}
		header := bucket.Get([]byte("Header"))
		if string(header) != md.Header {
			return ErrBadHeader
		}
		version := bucket.Get([]byte("Version"))
		if string(version) != md.Version {
			return ErrBadVersion
		}
		return nil
	})
}

// updateMetadata sets the contents of the metadata bucket to db.Metadata.
func (db *BoltDatabase) updateMetadata(tx *bolt.Tx) error {
	bucket, err := tx.CreateBucketIfNotExists([]byte("Metadata"))
	if err != nil {
		return err
	}
	if err := bucket.Put([]byte("Header"), []byte(db.Header)); err != nil {
		return err
	}
	return bucket.Put([]byte("Version"), []byte(db.Version))
}

// Close closes the database.
func (db *BoltDatabase) Close() error {
	return db.DB.Close()
}

// OpenDatabase opens a database and validates its metadata.
func OpenDatabase(md Metadata, filename string) (*BoltDatabase, error) {
	// Open with a 3 second timeout; without one, a second process holding
	// the file lock would hang this one indefinitely.
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}

	boltDB := &BoltDatabase{
		Metadata: md,
		DB:       db,
	}
	if err := boltDB.checkMetadata(md); err != nil {
		db.Close()
		return nil, err
	}

	return boltDB, nil
}
