// Package syncengine orchestrates one sync run: load snapshots, enumerate
// current local and remote state, compute a patch, apply it, and persist
// new snapshots only on success (spec §4.5).
package syncengine

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cardamom-sync/cardamom/internal/cache"
	"github.com/cardamom-sync/cardamom/internal/card"
	"github.com/cardamom-sync/cardamom/internal/localstore"
	"github.com/cardamom-sync/cardamom/internal/logging"
	"github.com/cardamom-sync/cardamom/internal/patch"
	"github.com/cardamom-sync/cardamom/internal/remotestore"
	"github.com/cardamom-sync/cardamom/internal/vcard"
)

// Engine binds a sync directory to a resolved remote store. Left is
// always the local side, Right is always the remote side, matching the
// target naming in package patch.
type Engine struct {
	dir    string
	remote *remotestore.Store
	log    zerolog.Logger
}

// New builds an Engine rooted at dir, pushing/pulling through remote.
func New(dir string, remote *remotestore.Store) *Engine {
	return &Engine{dir: dir, remote: remote, log: logging.WithComponent("sync-engine")}
}

// Result reports what one run computed and applied.
type Result struct {
	Hunks []patch.Hunk
}

// Options controls how Run behaves beyond the default apply-and-persist
// sync.
type Options struct {
	// DryRun computes the patch and logs every hunk it would apply,
	// without calling any store's mutating operation and without
	// saving the patched cache snapshots (spec §6 "--dry-run"). The
	// steps before the patch still run: a legacy .cache is split into
	// .local/.remote, and a missing snapshot file is created empty.
	DryRun bool
}

// Run performs one full sync: load -> enumerate -> patch -> apply ->
// persist. On the first hunk-application failure, the run aborts
// without persisting snapshots, so a retry starts from the same
// pre-sync state (spec §7 "abort without persisting"). With
// opts.DryRun set, it stops after computing the patch.
func (e *Engine) Run(opts Options) (Result, error) {
	if err := cache.MigrateLegacy(e.dir); err != nil {
		return Result{}, err
	}

	localCachePath := filepath.Join(e.dir, cache.LocalSnapshot)
	remoteCachePath := filepath.Join(e.dir, cache.RemoteSnapshot)

	localPrev, err := cache.Load(localCachePath)
	if err != nil {
		return Result{}, err
	}
	remotePrev, err := cache.Load(remoteCachePath)
	if err != nil {
		return Result{}, err
	}

	localNext, err := localstore.Enumerate(e.dir)
	if err != nil {
		return Result{}, err
	}
	remoteNext, err := e.remote.Next()
	if err != nil {
		return Result{}, err
	}

	left := patch.SideState{Prev: localPrev, Next: localNext}
	right := patch.SideState{Prev: remotePrev, Next: remoteNext}
	hunks := patch.Build(left, right)

	if opts.DryRun {
		for _, h := range hunks {
			e.log.Info().
				Str("target", h.Target.String()).
				Str("op", h.Op.String()).
				Str("id", h.ID).
				Msg("dry-run: would apply hunk")
		}
		return Result{Hunks: hunks}, nil
	}

	localCache := localPrev.Clone()
	remoteCache := remotePrev.Clone()

	for _, op := range [...]patch.Op{patch.Del, patch.Set, patch.Add} {
		for _, h := range hunks {
			if h.Op != op || h.Target == patch.NextRight {
				continue
			}
			if err := e.applyLocalOrCache(h, localCache, remoteCache); err != nil {
				return Result{}, fmt.Errorf("apply hunk %s %s %q: %w", h.Target, h.Op, h.ID, err)
			}
		}
	}

	for _, op := range [...]patch.Op{patch.Del, patch.Set, patch.Add} {
		for _, h := range hunks {
			if h.Op != op || h.Target != patch.NextRight {
				continue
			}
			if err := e.applyRemote(h, remoteNext, remoteCache); err != nil {
				return Result{}, fmt.Errorf("apply hunk %s %s %q: %w", h.Target, h.Op, h.ID, err)
			}
		}
	}

	if err := cache.Save(localCachePath, localCache); err != nil {
		return Result{}, err
	}
	if err := cache.Save(remoteCachePath, remoteCache); err != nil {
		return Result{}, err
	}

	return Result{Hunks: hunks}, nil
}

// applyLocalOrCache handles every target except NextRight: PrevLeft and
// PrevRight update the in-memory snapshot maps that get persisted at the
// end of the run; NextLeft writes or deletes a .vcf file.
func (e *Engine) applyLocalOrCache(h patch.Hunk, localCache, remoteCache card.Map) error {
	switch h.Target {
	case patch.PrevLeft:
		return applyToCache(localCache, h)
	case patch.PrevRight:
		return applyToCache(remoteCache, h)
	case patch.NextLeft:
		return e.applyLocal(h)
	default:
		return fmt.Errorf("unexpected target %v in local/cache phase", h.Target)
	}
}

func applyToCache(m card.Map, h patch.Hunk) error {
	switch h.Op {
	case patch.Add, patch.Set:
		m[h.ID] = h.Card
	case patch.Del:
		delete(m, h.ID)
	}
	return nil
}

func (e *Engine) applyLocal(h patch.Hunk) error {
	switch h.Op {
	case patch.Add, patch.Set:
		if err := vcard.Validate(h.Card.Content); err != nil {
			return fmt.Errorf("refusing to write invalid vcard for %q: %w", h.ID, err)
		}
		return localstore.Write(e.dir, h.ID, h.Card.Content, h.Card.Date)
	case patch.Del:
		return localstore.Delete(e.dir, h.ID)
	default:
		return fmt.Errorf("unknown op %v", h.Op)
	}
}

// applyRemote pushes a NextRight hunk through the CardDAV client, then
// mirrors the authoritative result (fresh etag on a new push) into
// remoteCache, overriding whatever a same-id PrevRight hunk wrote with
// the pre-push etag it had computed.
func (e *Engine) applyRemote(h patch.Hunk, remoteNext, remoteCache card.Map) error {
	switch h.Op {
	case patch.Add:
		c, err := e.hydrate(h.Card)
		if err != nil {
			return err
		}
		if err := vcard.Validate(c.Content); err != nil {
			return fmt.Errorf("refusing to push invalid vcard for %q: %w", h.ID, err)
		}
		pushed, err := e.remote.Insert(c)
		if err != nil {
			return err
		}
		remoteCache[h.ID] = pushed
		return nil
	case patch.Set:
		c, err := e.hydrate(h.Card)
		if err != nil {
			return err
		}
		if err := vcard.Validate(c.Content); err != nil {
			return fmt.Errorf("refusing to push invalid vcard for %q: %w", h.ID, err)
		}
		if existing, ok := remoteNext[h.ID]; ok {
			c.ETag = existing.ETag
		}
		pushed, err := e.remote.Update(c)
		if err != nil {
			return err
		}
		remoteCache[h.ID] = pushed
		return nil
	case patch.Del:
		etag := remoteNext[h.ID].ETag
		if err := e.remote.Delete(h.ID, etag); err != nil {
			return err
		}
		delete(remoteCache, h.ID)
		return nil
	default:
		return fmt.Errorf("unknown op %v", h.Op)
	}
}

// hydrate fills in c's Content by reading the local .vcf file when it's
// empty. Only cards enumerated by localstore carry empty content
// (loaded lazily, per its own doc comment); applyRemote calls it so a
// card pushed to the remote side, and the .remote snapshot entry taken
// from the push, carry the real body. Cache-only hunks are stored
// without it.
func (e *Engine) hydrate(c card.Card) (card.Card, error) {
	if c.Content != "" {
		return c, nil
	}
	content, err := localstore.Read(e.dir, c.ID)
	if err != nil {
		return c, err
	}
	c.Content = content
	return c, nil
}
