// Package store persists anchor states, per-block manifests, and the
// manifest MMR leaf set. The transition function itself never touches disk;
// the surrounding service reads the previous state from here and writes the
// next one back.
package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"lukechampine.com/blake3"

	"anchorsm.dev/node/asm"
)

var (
	bucketStates     = []byte("anchor_state_by_height")
	bucketManifests  = []byte("manifest_by_leaf")
	bucketLeaves     = []byte("mmr_leaf_by_index")
	bucketRequestTxs = []byte("request_tx_by_txid")
)

type DB struct {
	chainDir string
	db       *bolt.DB
	tip      *TipRecord
}

func Open(datadir string, network string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if network == "" {
		return nil, fmt.Errorf("network required")
	}

	chainDir := ChainDir(datadir, network)
	if err := ensureDir(chainDir); err != nil {
		return nil, err
	}

	path := filepath.Join(chainDir, "asm.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{chainDir: chainDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketStates, bucketManifests, bucketLeaves, bucketRequestTxs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	t, err := readTipRecord(chainDir)
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}
	d.tip = t // nil means uninitialized; caller must InitGenesis.
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ChainDir() string { return d.chainDir }

// Tip returns the committed chain tip, or nil before genesis init.
func (d *DB) Tip() *TipRecord {
	if d == nil {
		return nil
	}
	return d.tip
}

// SetTip writes the tip record atomically. It is the commit point of a block
// application and must run only after all block data is in the kv store.
func (d *DB) SetTip(t *TipRecord) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if err := writeTipRecordAtomic(d.chainDir, t); err != nil {
		return err
	}
	d.tip = t
	return nil
}

func (d *DB) PutAnchorState(height uint64, state *asm.AnchorState) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStates).Put(be64(height), seal(state.Encode()))
	})
}

func (d *DB) GetAnchorState(height uint64) (*asm.AnchorState, bool, error) {
	raw, err := d.get(bucketStates, be64(height))
	if err != nil || raw == nil {
		return nil, false, err
	}
	payload, err := unseal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("anchor state %d: %w", height, err)
	}
	state, err := asm.DecodeAnchorState(payload)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// PutManifest stores a block's manifest keyed by its MMR leaf index,
// together with the block id the leaf commitment binds to.
func (d *DB) PutManifest(leafIndex uint64, blockID [32]byte, m *asm.AsmManifest) error {
	val := append(blockID[:], m.Encode()...)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketManifests).Put(be64(leafIndex), seal(val))
	})
}

func (d *DB) GetManifest(leafIndex uint64) ([32]byte, *asm.AsmManifest, bool, error) {
	var blockID [32]byte
	raw, err := d.get(bucketManifests, be64(leafIndex))
	if err != nil || raw == nil {
		return blockID, nil, false, err
	}
	payload, err := unseal(raw)
	if err != nil {
		return blockID, nil, false, fmt.Errorf("manifest %d: %w", leafIndex, err)
	}
	if len(payload) < 32 {
		return blockID, nil, false, fmt.Errorf("manifest %d: short record", leafIndex)
	}
	copy(blockID[:], payload[:32])
	m, err := asm.DecodeManifest(payload[32:])
	if err != nil {
		return blockID, nil, false, err
	}
	return blockID, m, true, nil
}

func (d *DB) PutManifestLeaf(index uint64, leaf [32]byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLeaves).Put(be64(index), leaf[:])
	})
}

// Leaves loads the full ordered leaf set. Proof generation walks all of
// them; the set grows 32 bytes per block, which stays cheap for the chain
// lengths this node targets.
func (d *DB) Leaves() ([][32]byte, error) {
	var out [][32]byte
	err := d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLeaves).Cursor()
		expect := uint64(0)
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) != 8 || binary.BigEndian.Uint64(k) != expect || len(v) != 32 {
				return fmt.Errorf("leaf set corrupt at index %d", expect)
			}
			var leaf [32]byte
			copy(leaf[:], v)
			out = append(out, leaf)
			expect++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProofForLeaf rebuilds the membership proof of one manifest leaf against
// the accumulator formed by all stored leaves.
func (d *DB) ProofForLeaf(index uint64) (*asm.MmrProof, error) {
	leaves, err := d.Leaves()
	if err != nil {
		return nil, err
	}
	return asm.ProofForLeaf(leaves, index)
}

func (d *DB) PutRequestTx(txid [32]byte, raw []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRequestTxs).Put(txid[:], seal(raw))
	})
}

func (d *DB) GetRequestTx(txid [32]byte) ([]byte, bool, error) {
	raw, err := d.get(bucketRequestTxs, txid[:])
	if err != nil || raw == nil {
		return nil, false, err
	}
	payload, err := unseal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("request tx %x: %w", txid[:8], err)
	}
	return payload, true, nil
}

func (d *DB) get(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func be64(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

// seal prefixes a record with its blake3 checksum so silent on-disk
// corruption surfaces as a store error instead of a decode failure deep
// inside the transition.
func seal(payload []byte) []byte {
	sum := blake3.Sum256(payload)
	return append(sum[:], payload...)
}

func unseal(record []byte) ([]byte, error) {
	if len(record) < 32 {
		return nil, fmt.Errorf("record shorter than checksum")
	}
	sum := blake3.Sum256(record[32:])
	if !bytes.Equal(sum[:], record[:32]) {
		return nil, fmt.Errorf("checksum mismatch")
	}
	return record[32:], nil
}
