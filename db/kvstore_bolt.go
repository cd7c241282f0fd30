// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"bytes"
	"context"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/polimec/polimec-core/pkg/log"
)

const _fileMode = 0600

// boltDB is KVStore implementation based on bolt DB
type boltDB struct {
	db     *bolt.DB
	path   string
	config Config
}

// NewBoltDB instantiates a bolt DB backed KVStore
func NewBoltDB(cfg Config) KVStore {
	return &boltDB{path: cfg.DbPath, config: cfg}
}

// Start opens the bolt DB (creates a new file if not existing yet)
func (b *boltDB) Start(_ context.Context) error {
	open := func() error {
		db, err := bolt.Open(b.path, _fileMode, nil)
		if err != nil {
			return err
		}
		b.db = db
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(b.config.NumRetries))
	if err := backoff.Retry(open, policy); err != nil {
		log.L().Error("failed to open kvstore", zap.String("path", b.path), zap.Error(err))
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// Stop closes the bolt DB
func (b *boltDB) Stop(_ context.Context) error {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return errors.Wrap(ErrIO, err.Error())
		}
		b.db = nil
	}
	return nil
}

func (b *boltDB) Put(namespace string, key, value []byte) (err error) {
	for c := uint8(0); c < b.config.NumRetries; c++ {
		if err = b.db.Update(func(tx *bolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
			if err != nil {
				return err
			}
			return bucket.Put(key, value)
		}); err == nil {
			break
		}
	}
	if err != nil {
		err = errors.Wrap(ErrIO, err.Error())
	}
	return err
}

func (b *boltDB) Get(namespace string, key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return errors.Wrapf(ErrBucketNotExist, "bucket = %x doesn't exist", []byte(namespace))
		}
		v := bucket.Get(key)
		if v == nil {
			return errors.Wrapf(ErrNotExist, "key = %x doesn't exist", key)
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err == nil {
		return value, nil
	}
	if errors.Cause(err) == ErrBucketNotExist || errors.Cause(err) == ErrNotExist {
		return nil, err
	}
	return nil, errors.Wrap(ErrIO, err.Error())
}

func (b *boltDB) Delete(namespace string, key []byte) (err error) {
	for c := uint8(0); c < b.config.NumRetries; c++ {
		if err = b.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(namespace))
			if bucket == nil {
				return nil
			}
			return bucket.Delete(key)
		}); err == nil {
			break
		}
	}
	if err != nil {
		err = errors.Wrap(ErrIO, err.Error())
	}
	return err
}

func (b *boltDB) Filter(namespace string, c Condition, minKey, maxKey []byte) ([][]byte, [][]byte, error) {
	var fk, fv [][]byte
	if err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return errors.Wrapf(ErrBucketNotExist, "bucket = %x doesn't exist", []byte(namespace))
		}
		cur := bucket.Cursor()
		k, v := cur.First()
		if len(minKey) > 0 {
			k, v = cur.Seek(minKey)
		}
		for ; k != nil; k, v = cur.Next() {
			if len(maxKey) > 0 && bytes.Compare(k, maxKey) > 0 {
				break
			}
			if c(k, v) {
				key := make([]byte, len(k))
				copy(key, k)
				value := make([]byte, len(v))
				copy(value, v)
				fk = append(fk, key)
				fv = append(fv, value)
			}
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}
	if fk == nil {
		return nil, nil, errors.Wrap(ErrNotExist, "filter returns no match")
	}
	return fk, fv, nil
}
