package hostsim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/x1-nitro/pkg/types"
)

// Store persists simulated account state between runs.
//
// Accounts live in a single bolt bucket keyed by pubkey; values carry the
// serialized account record. The store is safe for the simulator's
// serialized access pattern.
type Store struct {
	db *bolt.DB
}

var accountsBucket = []byte("accounts")

// ErrAccountNotFound is returned when a key has no stored account.
var ErrAccountNotFound = errors.New("account not found")

// Stored account record layout:
//   - lamports:   8 bytes (little-endian)
//   - rent_epoch: 8 bytes (little-endian)
//   - executable: 1 byte
//   - owner:      32 bytes
//   - data_len:   8 bytes (little-endian)
//   - data:       data_len bytes
const storedHeaderSize = 8 + 8 + 1 + 32 + 8

// OpenStore opens (creating if needed) a store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAccount loads the stored account for key.
func (s *Store) GetAccount(key types.Pubkey) (AccountSeed, error) {
	var seed AccountSeed
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(accountsBucket).Get(key[:])
		if v == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, key)
		}
		decoded, err := decodeStored(key, v)
		if err != nil {
			return err
		}
		seed = decoded
		return nil
	})
	return seed, err
}

// PutAccount stores the account state for its key.
func (s *Store) PutAccount(acc AccountSeed) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Put(acc.Key[:], encodeStored(acc))
	})
}

// DeleteAccount removes the stored account for key, if any.
func (s *Store) DeleteAccount(key types.Pubkey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Delete(key[:])
	})
}

// Commit stores every canonical account of a finished invocation.
func (s *Store) Commit(accounts []AccountSeed) error {
	dup := duplicateIndexes(accounts)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucket)
		for i, acc := range accounts {
			if dup[i] >= 0 {
				continue
			}
			if err := b.Put(acc.Key[:], encodeStored(acc)); err != nil {
				return err
			}
		}
		return nil
	})
}

// StateHash computes a blake3 hash over all stored accounts in key order.
// Bolt iterates keys sorted, so the hash is deterministic for a given
// state regardless of write order.
func (s *Store) StateHash() ([32]byte, error) {
	h := blake3.New()
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			h.Write(k)
			h.Write(v)
			return nil
		})
	})
	var out [32]byte
	if err != nil {
		return out, err
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

func encodeStored(acc AccountSeed) []byte {
	buf := make([]byte, storedHeaderSize+len(acc.Data))
	binary.LittleEndian.PutUint64(buf[0:8], acc.Lamports)
	binary.LittleEndian.PutUint64(buf[8:16], acc.RentEpoch)
	if acc.Executable {
		buf[16] = 1
	}
	copy(buf[17:49], acc.Owner[:])
	binary.LittleEndian.PutUint64(buf[49:57], uint64(len(acc.Data)))
	copy(buf[storedHeaderSize:], acc.Data)
	return buf
}

func decodeStored(key types.Pubkey, v []byte) (AccountSeed, error) {
	var seed AccountSeed
	if len(v) < storedHeaderSize {
		return seed, fmt.Errorf("%w: stored record too short", ErrInvalidAccountData)
	}
	seed.Key = key
	seed.Lamports = binary.LittleEndian.Uint64(v[0:8])
	seed.RentEpoch = binary.LittleEndian.Uint64(v[8:16])
	seed.Executable = v[16] != 0
	copy(seed.Owner[:], v[17:49])

	dataLen := binary.LittleEndian.Uint64(v[49:57])
	if dataLen != uint64(len(v)-storedHeaderSize) {
		return seed, fmt.Errorf("%w: stored data length mismatch", ErrInvalidAccountData)
	}
	seed.Data = bytes.Clone(v[storedHeaderSize:])
	return seed, nil
}
