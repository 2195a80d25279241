package main

import (
	"errors"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketAgent    = []byte("agent")
	bucketItems    = []byte("items")
	keyParticipant = []byte("participantId")

	errNoSnapshot = errors.New("no cached items for document")
)

// Cache is the agent's local store: a participant id that survives restarts
// and the last item snapshot per document for offline start.
type Cache struct {
	db *bolt.DB
}

func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketAgent, bucketItems} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// ParticipantID returns the stored participant id, creating one on first use.
func (c *Cache) ParticipantID() (string, error) {
	var id string
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgent)
		if v := b.Get(keyParticipant); v != nil {
			id = string(v)
			return nil
		}
		id = uuid.NewString()
		return b.Put(keyParticipant, []byte(id))
	})
	return id, err
}

func (c *Cache) SaveItems(doc string, data []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketItems).Put([]byte(doc), data)
	})
}

func (c *Cache) LoadItems(doc string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketItems).Get([]byte(doc))
		if v == nil {
			return errNoSnapshot
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (c *Cache) Close() error { return c.db.Close() }
