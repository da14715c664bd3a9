// Copyright 2016 Google Inc. All Rights Reserved.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//     http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"fmt"

	"github.com/boltdb/bolt"
)

// BoltStore is a Store backed by a boltdb file, the same embedded database
// the controller (kube-cert-manager) used for its Accounts bucket. Layout:
// one top-level bucket per group, one nested bucket per key, one value per
// name within it.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if necessary) a boltdb file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %v", path, err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) Load(group, key, name string, _ Kind) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		gb := tx.Bucket([]byte(group))
		if gb == nil {
			return nil
		}
		kb := gb.Bucket([]byte(key))
		if kb == nil {
			return nil
		}
		if v := kb.Get([]byte(name)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return value, nil
}

func (b *BoltStore) Save(group, key, name string, _ Kind, value []byte, _ uint32) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		gb, err := tx.CreateBucketIfNotExists([]byte(group))
		if err != nil {
			return fmt.Errorf("store: create group bucket %s: %v", group, err)
		}
		kb, err := gb.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return fmt.Errorf("store: create key bucket %s: %v", key, err)
		}
		return kb.Put([]byte(name), value)
	})
}
