package devicestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var deviceBucket = []byte("device")

type BoltStorage struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("devicestore: failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("devicestore: failed to open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(deviceBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("devicestore: failed to create bucket: %w", err)
	}

	return &BoltStorage{db: db}, nil
}

func (b *BoltStorage) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(deviceBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v живёт только внутри транзакции
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *BoltStorage) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(deviceBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("devicestore: failed to write %s: %w", key, err)
	}
	return nil
}

func (b *BoltStorage) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(deviceBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("devicestore: failed to delete %s: %w", key, err)
	}
	return nil
}

func (b *BoltStorage) Close() error {
	return b.db.Close()
}
