package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const SchemaVersionV1 uint32 = 1

// TipRecord is the chain commit point: the last block whose anchor state,
// manifest, and leaf are fully stored.
type TipRecord struct {
	SchemaVersion uint32 `json:"schema_version"`
	Network       string `json:"network"`

	TipHeight     uint64 `json:"tip_height"`
	TipBlockIDHex string `json:"tip_block_id"`
	MmrLeaves     uint64 `json:"mmr_leaves"`
}

func tipPath(chainDir string) string {
	return filepath.Join(chainDir, "TIP.json")
}

func readTipRecord(chainDir string) (*TipRecord, error) {
	b, err := os.ReadFile(tipPath(chainDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tip record: %w", err)
	}
	var t TipRecord
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("tip record json: %w", err)
	}
	if t.SchemaVersion > SchemaVersionV1 {
		return nil, fmt.Errorf("tip record schema_version %d > supported %d", t.SchemaVersion, SchemaVersionV1)
	}
	return &t, nil
}

// writeTipRecordAtomic writes TIP.json as a crash-safe commit point:
// write temp -> fsync temp -> rename -> fsync dir.
func writeTipRecordAtomic(chainDir string, t *TipRecord) error {
	if t == nil {
		return fmt.Errorf("tip record: nil")
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("tip record json: %w", err)
	}
	b = append(b, '\n')

	final := tipPath(chainDir)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- tmp path is derived from operator-controlled datadir; G302 addressed by 0o600.
	if err != nil {
		return fmt.Errorf("tip record open tmp: %w", err)
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("tip record write tmp: %w", werr)
	}
	if serr != nil {
		return fmt.Errorf("tip record fsync tmp: %w", serr)
	}
	if cerr != nil {
		return fmt.Errorf("tip record close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("tip record rename: %w", err)
	}

	// Fsync the directory so rename is durable.
	d, err := os.Open(chainDir) // #nosec G304 -- chainDir is derived from operator-controlled datadir, not user input.
	if err != nil {
		return fmt.Errorf("tip record fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("tip record fsync dir: %w", err)
	}
	if err := d.Close(); err != nil {
		return fmt.Errorf("tip record fsync dir close: %w", err)
	}
	return nil
}
