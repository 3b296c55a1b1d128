// Package localstore enumerates .vcf files in the sync directory and
// produces a map of current local cards (spec §4.2).
package localstore

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cardamom-sync/cardamom/internal/card"
	"github.com/cardamom-sync/cardamom/internal/cdaverr"
)

const vcfExt = ".vcf"

// Enumerate walks dir (non-recursively) and returns a Card for every
// entry whose extension is .vcf and whose filename stem is non-empty.
// The card's id is the file stem, its date is the file's mtime, and its
// content is left empty — loaded lazily only when a hunk needs to push
// it (Read).
//
// A directory that can't be listed is a fatal error: partial
// enumeration would corrupt the patch. A stat failure on one file is
// likewise fatal and identifies the offending path, rather than being
// silently skipped.
func Enumerate(dir string) (card.Map, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cdaverr.WithPath(cdaverr.ErrReadLocalCardsDir, dir, err)
	}

	cards := make(card.Map, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != vcfExt {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == "" {
			continue
		}

		path := filepath.Join(dir, name)
		info, err := entry.Info()
		if err != nil {
			return nil, cdaverr.WithPath(cdaverr.ErrGetVcfMetadata, path, err)
		}

		cards[stem] = card.Card{
			ID:   stem,
			Date: info.ModTime(),
			Path: path,
		}
	}
	return cards, nil
}

// Read loads the full vCard content for id from dir, for use when a hunk
// needs to push the card's body to another side.
func Read(dir, id string) (string, error) {
	path := filepath.Join(dir, id+vcfExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", cdaverr.WithPath(cdaverr.ErrGetVcfMetadata, path, err)
	}
	return string(data), nil
}

// Write creates or overwrites id's .vcf file in dir with content, and
// sets its mtime to date so a subsequent Enumerate reports the same date
// the hunk carried (keeping local and cache snapshots consistent without
// requiring a second stat round-trip).
func Write(dir, id, content string, date time.Time) error {
	path := filepath.Join(dir, id+vcfExt)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return cdaverr.WithPath(cdaverr.ErrGetVcfMetadata, path, err)
	}
	if err := os.Chtimes(path, date, date); err != nil {
		return cdaverr.WithPath(cdaverr.ErrGetVcfModified, path, err)
	}
	return nil
}

// Delete removes id's .vcf file from dir. Deleting an already-absent
// file is not an error: the goal state (no local file for id) is already
// met.
func Delete(dir, id string) error {
	path := filepath.Join(dir, id+vcfExt)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return cdaverr.WithPath(cdaverr.ErrGetVcfMetadata, path, err)
	}
	return nil
}
