package repositories

import (
	"encoding/json"
	"fmt"
	"nexus-mail/errors"

	"github.com/dgraph-io/badger/v4"
)

// Values are stored as JSON documents under human-readable keys so that
// cmd/inspect can dump any prefix without knowing the record type up front.

func get[T any](txn *badger.Txn, key string) (T, error) {
	var out T
	item, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return out, fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return out, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	})
	return out, err
}

func set(txn *badger.Txn, key string, value any) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(key), bytes)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

// scan walks every key under prefix and decodes its value.
// With reverse set, iteration starts at the greatest key, the same trick
// used for time-ordered keys: newest first.
func scan[T any](txn *badger.Txn, prefix string, reverse bool, fn func(key string, value T) error) error {
	options := badger.DefaultIteratorOptions
	options.Reverse = reverse
	options.Prefix = []byte(prefix)
	it := txn.NewIterator(options)
	defer it.Close()

	seekKey := []byte(prefix)
	if reverse {
		seekKey = append([]byte(prefix), 0xFF)
	}
	for it.Seek(seekKey); it.ValidForPrefix([]byte(prefix)); it.Next() {
		item := it.Item()
		var value T
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &value)
		})
		if err != nil {
			return err
		}
		if err = fn(string(item.KeyCopy(nil)), value); err != nil {
			return err
		}
	}
	return nil
}

// deletePrefix removes every key under prefix. Keys are collected first because
// a badger iterator must not observe its own transaction's deletes.
func deletePrefix(txn *badger.Txn, prefix string) error {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	options.Prefix = []byte(prefix)
	it := txn.NewIterator(options)
	var keys [][]byte
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
