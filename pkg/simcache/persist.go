package simcache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

const snapshotFormatVersion = 1

type arenaSnapshotFile struct {
	Version int             `msgpack:"version"`
	Entries []semanticEntry `msgpack:"entries"`
}

// SaveSnapshot writes the semantic index to path as a msgpack file. The hash
// tiers are already durable in badger and are not part of the snapshot.
func (c *Cache) SaveSnapshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	snap := arenaSnapshotFile{Version: snapshotFormatVersion, Entries: c.arena.view()}
	return msgpack.NewEncoder(file).Encode(&snap)
}

// LoadSnapshot replaces the semantic index with a previously saved snapshot.
// A missing file is not an error; the cache simply starts cold.
func (c *Cache) LoadSnapshot(path string) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	var snap arenaSnapshotFile
	if err := msgpack.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("decode semantic snapshot %s: %w", path, err)
	}
	if snap.Version != snapshotFormatVersion {
		return fmt.Errorf("unsupported semantic snapshot version %d", snap.Version)
	}
	c.arena.restore(snap.Entries)
	return nil
}
