// Package cache persists a side's previous-sync snapshot to a file in the
// sync directory, as a self-describing JSON map so snapshots are portable
// and hand-inspectable (spec §4.1).
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cardamom-sync/cardamom/internal/card"
	"github.com/cardamom-sync/cardamom/internal/cdaverr"
)

// Names of the well-known snapshot files inside a sync directory.
const (
	LocalSnapshot  = ".local"
	RemoteSnapshot = ".remote"
	// LegacySnapshot is the single-snapshot format predating the
	// prev/next split (spec §6, §9 "Snapshot split"). Still recognized
	// on disk so an existing sync directory can be migrated in place.
	LegacySnapshot = ".cache"
)

// Load reads the CardMap snapshot at path. A missing file is created
// empty (create-if-missing semantics); an empty file decodes to an empty
// map.
func Load(path string) (card.Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, cdaverr.WithPath(cdaverr.ErrReadCachedCards, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, cdaverr.WithPath(cdaverr.ErrReadCachedCards, path, err)
	}
	if info.Size() == 0 {
		return card.Map{}, nil
	}

	data := make([]byte, info.Size())
	if _, err := f.Read(data); err != nil {
		return nil, cdaverr.WithPath(cdaverr.ErrReadCachedCards, path, err)
	}

	var m card.Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cdaverr.WithPath(cdaverr.ErrParseCachedCards, path, err)
	}
	if m == nil {
		m = card.Map{}
	}
	return m, nil
}

// Save writes m to path as whole-file replacement: it encodes to a
// temporary file in the same directory, then renames it over path so a
// crash mid-write never leaves a half-written snapshot (spec §4.5 step
// 5, "write new file, rename"). Durability beyond the filesystem's
// guarantees is not promised.
func Save(path string, m card.Map) error {
	data, err := json.Marshal(m)
	if err != nil {
		return cdaverr.WithPath(cdaverr.ErrSerializeCards, path, err)
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return cdaverr.WithPath(cdaverr.ErrReadCachedCards, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cdaverr.WithPath(cdaverr.ErrReadCachedCards, path, err)
	}
	return nil
}

// MigrateLegacy splits a pre-existing .cache single-snapshot file into
// .local and .remote, if .cache exists and neither split file does yet.
// It is a no-op otherwise. This lets a sync directory written by the
// historical three-map engine be picked up by the refined four-map
// engine without losing the last-known state of either side (spec §9,
// "Snapshot split").
func MigrateLegacy(syncDir string) error {
	legacyPath := filepath.Join(syncDir, LegacySnapshot)
	localPath := filepath.Join(syncDir, LocalSnapshot)
	remotePath := filepath.Join(syncDir, RemoteSnapshot)

	if _, err := os.Stat(legacyPath); os.IsNotExist(err) {
		return nil
	}
	if _, err := os.Stat(localPath); err == nil {
		return nil
	}
	if _, err := os.Stat(remotePath); err == nil {
		return nil
	}

	legacy, err := Load(legacyPath)
	if err != nil {
		return err
	}
	if err := Save(localPath, legacy); err != nil {
		return err
	}
	return Save(remotePath, legacy)
}
