// Package store persists immutable commit metadata in a bbolt database so
// line author colors are available immediately after a restart.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"go.etcd.io/bbolt"
)

// Buckets
var (
	BucketCommits = []byte("commits") // commit id -> commitRecord JSON
	BucketMeta    = []byte("meta")    // schema bookkeeping
)

const schemaVersion = "1"

type DB struct{ *bbolt.DB }

// commitRecord is the persisted form of models.CommitInfo. The author offset
// is stored explicitly so author-local rendering survives a round trip.
type commitRecord struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Unix   int64  `json:"unix"`
	Offset int    `json:"offset"`
}

// DefaultPath returns the database location inside the user cache directory
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lineauthor", "commits.db"), nil
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open commit store %s: %w", path, err)
	}
	// Ensure buckets exist
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(BucketCommits); e != nil {
			return e
		}
		meta, e := tx.CreateBucketIfNotExists(BucketMeta)
		if e != nil {
			return e
		}
		return meta.Put([]byte("schema"), []byte(schemaVersion))
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func (db *DB) Close() error { return db.DB.Close() }

// PutCommit stores metadata for one commit
func (db *DB) PutCommit(info models.CommitInfo) error {
	return db.PutCommits([]models.CommitInfo{info})
}

// PutCommits stores several commits in one transaction, skipping ids that
// are already present
func (db *DB) PutCommits(infos []models.CommitInfo) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(BucketCommits)
		for _, info := range infos {
			if info.CommitID == "" || models.IsUncommitted(info.CommitID) {
				continue
			}
			key := []byte(info.CommitID)
			if b.Get(key) != nil {
				continue
			}
			_, offset := info.AuthorTime.Zone()
			data, err := json.Marshal(commitRecord{
				Name:   info.AuthorName,
				Email:  info.AuthorEmail,
				Unix:   info.AuthorTime.Unix(),
				Offset: offset,
			})
			if err != nil {
				return err
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCommit returns the stored metadata and whether it was found
func (db *DB) GetCommit(id string) (models.CommitInfo, bool, error) {
	var rec commitRecord
	found := false
	err := db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(BucketCommits).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil || !found {
		return models.CommitInfo{}, false, err
	}
	when := time.Unix(rec.Unix, 0).In(time.FixedZone("", rec.Offset))
	return models.NewCommitInfo(id, rec.Name, rec.Email, when), true, nil
}

// CountCommits returns the number of stored commits
func (db *DB) CountCommits() (int, error) {
	n := 0
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketCommits).ForEach(func(k, v []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

// Clear removes every stored commit
func (db *DB) Clear() error {
	return db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(BucketCommits); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(BucketCommits)
		return err
	})
}
