// Command asm-node drives the anchor state machine from the command line:
// anchor a chain at an L1 header, apply raw L1 blocks against the stored
// tip, and inspect chain status.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"anchorsm.dev/node/node"
	"anchorsm.dev/node/node/store"
	"anchorsm.dev/node/stf"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:])
	case "apply":
		err = cmdApply(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "asm-node %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	_, _ = fmt.Fprintln(os.Stderr, `usage: asm-node <command> [flags]

commands:
  init    anchor a new chain at an L1 header
  apply   apply a raw L1 block to the chain tip
  status  print the committed tip record`)
}

func commonFlags(fs *flag.FlagSet, cfg *node.Config) {
	fs.StringVar(&cfg.Network, "network", cfg.Network, "network name (mainnet/regtest)")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "node data directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
}

func setup(cfg node.Config) (*node.Service, *store.DB, error) {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	params, err := node.ParamsForNetwork(cfg.Network)
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	log.SetLevel(level)

	db, err := store.Open(cfg.DataDir, cfg.Network)
	if err != nil {
		return nil, nil, err
	}

	genesis, err := loadGenesisRegistry(db.ChainDir())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	svc := node.NewService(cfg, params, genesis, db, node.NewStoreProvider(db), log)
	return svc, db, nil
}

func cmdInit(args []string) error {
	cfg := node.DefaultConfig()
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	commonFlags(fs, &cfg)
	headerHex := fs.String("header", "", "hex-encoded 80-byte L1 anchor header")
	anchorHeight := fs.Uint64("height", 0, "L1 height of the anchor header")
	registryPath := fs.String("genesis-registry", "", "path to the encoded genesis registry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *headerHex == "" {
		return fmt.Errorf("-header is required")
	}
	headerBytes, err := hex.DecodeString(strings.TrimSpace(*headerHex))
	if err != nil {
		return fmt.Errorf("decode header hex: %w", err)
	}

	if *registryPath != "" {
		raw, err := os.ReadFile(*registryPath) // #nosec G304 -- operator-supplied path.
		if err != nil {
			return err
		}
		// Decode up front so a malformed registry fails init, not the
		// first block.
		if _, err := stf.DecodeGenesisRegistry(raw); err != nil {
			return err
		}
		chainDir := store.ChainDir(cfg.DataDir, cfg.Network)
		if err := os.MkdirAll(chainDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(genesisRegistryPath(chainDir), raw, 0o600); err != nil {
			return err
		}
	}

	svc, db, err := setup(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return svc.InitGenesis(cfg.Network, *anchorHeight, headerBytes)
}

func cmdApply(args []string) error {
	cfg := node.DefaultConfig()
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	commonFlags(fs, &cfg)
	blockPath := fs.String("block", "", "path to a hex-encoded raw L1 block")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *blockPath == "" {
		return fmt.Errorf("-block is required")
	}
	raw, err := os.ReadFile(*blockPath) // #nosec G304 -- operator-supplied path.
	if err != nil {
		return err
	}
	blockBytes, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("decode block hex: %w", err)
	}

	svc, db, err := setup(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tr, err := svc.ApplyBlock(context.Background(), blockBytes)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "applied: block_id=%x logs=%d sections=%d\n",
		tr.BlockID, len(tr.Manifest.Logs), len(tr.State.Sections))
	return nil
}

func cmdStatus(args []string) error {
	cfg := node.DefaultConfig()
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	commonFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, db, err := setup(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tip := svc.Tip()
	if tip == nil {
		_, _ = fmt.Fprintln(os.Stdout, "chain: uninitialized")
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tip)
}

func genesisRegistryPath(chainDir string) string {
	return filepath.Join(chainDir, "genesis_registry.bin")
}

func loadGenesisRegistry(chainDir string) (*stf.GenesisRegistry, error) {
	raw, err := os.ReadFile(genesisRegistryPath(chainDir)) // #nosec G304 -- path under operator-controlled datadir.
	if err != nil {
		if os.IsNotExist(err) {
			return stf.NewGenesisRegistry(), nil
		}
		return nil, err
	}
	return stf.DecodeGenesisRegistry(raw)
}
