package hostsim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
)

// Snapshot stream framing: a magic header, then one frame per account of
// key (32 bytes), value length (u32), value. The whole stream is
// zstd-compressed.
var snapshotMagic = []byte("X1NITROSNAP1")

// ErrBadSnapshot is returned for a snapshot stream the store cannot parse.
var ErrBadSnapshot = errors.New("bad snapshot stream")

// Snapshot writes a compressed dump of all stored accounts to w.
func (s *Store) Snapshot(w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	if _, err := zw.Write(snapshotMagic); err != nil {
		zw.Close()
		return err
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		var lenBuf [4]byte
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			if _, err := zw.Write(k); err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
			if _, err := zw.Write(lenBuf[:]); err != nil {
				return err
			}
			_, err := zw.Write(v)
			return err
		})
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Restore replaces the store's accounts with the contents of a snapshot
// stream previously written by Snapshot.
func (s *Store) Restore(r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(zr, magic); err != nil {
		return fmt.Errorf("%w: missing magic", ErrBadSnapshot)
	}
	if string(magic) != string(snapshotMagic) {
		return fmt.Errorf("%w: wrong magic", ErrBadSnapshot)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(accountsBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucket(accountsBucket)
		if err != nil {
			return err
		}

		var key [32]byte
		var lenBuf [4]byte
		for {
			if _, err := io.ReadFull(zr, key[:]); err != nil {
				if err == io.EOF {
					return nil
				}
				return fmt.Errorf("%w: truncated key", ErrBadSnapshot)
			}
			if _, err := io.ReadFull(zr, lenBuf[:]); err != nil {
				return fmt.Errorf("%w: truncated length", ErrBadSnapshot)
			}
			value := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
			if _, err := io.ReadFull(zr, value); err != nil {
				return fmt.Errorf("%w: truncated value", ErrBadSnapshot)
			}
			if err := b.Put(key[:], value); err != nil {
				return err
			}
		}
	})
}
