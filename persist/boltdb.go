package persist

import (
	"time"

	bolt "github.com/rivine/bbolt"
)

// BoltDatabase is a persist-level wrapper for the bolt database,
// providing a header/version check on top of the raw *bolt.DB (teacher:
// persist/boltdb.go).
type BoltDatabase struct {
	Metadata
	*bolt.DB
}

// OpenDatabase opens a database and validates its metadata, creating it
// (with the given metadata) if it does not yet exist.
func OpenDatabase(md Metadata, filename string) (*BoltDatabase, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	boltDB := &BoltDatabase{Metadata: md, DB: db}
	if err := boltDB.checkMetadata(md); err != nil {
		db.Close()
		return nil, err
	}
	return boltDB, nil
}

func (db *BoltDatabase) checkMetadata(md Metadata) error {
	return db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte("Metadata"))
		if bucket == nil {
			bucket, err := tx.CreateBucket([]byte("Metadata"))
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte("Header"), []byte(md.Header)); err != nil {
				return err
			}
			return bucket.Put([]byte("Version"), []byte(md.Version))
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

// Close closes the database.
func (db *BoltDatabase) Close() error {
	return db.DB.Close()
}
