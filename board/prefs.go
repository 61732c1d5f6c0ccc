package board

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"boardsync/domain"
	"boardsync/localstore"
)

// PreferenceClient is the slice of the Board API client the
// synchronizer consumes. GetPreferences reports ok=false when the
// remote has no stored record (or an all-null one) for the user.
type PreferenceClient interface {
	GetPreferences(ctx context.Context, userID string) (prefs domain.Preferences, ok bool, err error)
	PutPreferences(ctx context.Context, userID string, prefs domain.Preferences) error
}

const prefKeyPrefix = "boardsync/workspace-preferences/"

func prefKey(userID string) string {
	if userID == "" {
		userID = domain.AnonymousUserID
	}
	return prefKeyPrefix + userID
}

const defaultPutTimeout = 10 * time.Second

// PreferenceSynchronizer keeps the board grouping and filters in sync
// across the in-memory state, the local durable cache and the remote
// per-user record. Local state always wins on responsiveness: explicit
// updates apply synchronously and hit the local cache before any
// remote write, and remote writes are fire-and-forget.
//
// Writes are last-write-wins with no conflict token; two concurrent
// sessions for the same user clobber each other silently.
type PreferenceSynchronizer struct {
	remote PreferenceClient
	store  localstore.Store
	log    *log.Logger

	mu     sync.Mutex
	userID string
	loaded bool
	prefs  domain.Preferences
	sig    signal

	remoteWrites sync.WaitGroup
	putTimeout   time.Duration
}

func NewPreferenceSynchronizer(remote PreferenceClient, store localstore.Store, logger *log.Logger) *PreferenceSynchronizer {
	if remote == nil {
		panic("board.NewPreferenceSynchronizer: remote client is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &PreferenceSynchronizer{
		remote:     remote,
		store:      store,
		log:        logger,
		prefs:      domain.DefaultPreferences(),
		putTimeout: defaultPutTimeout,
	}
}

// WatchSettings subscribes the synchronizer to settings refreshes of
// the cache so filter references are pruned when statuses or labels
// disappear.
func (p *PreferenceSynchronizer) WatchSettings(cache *EntityCache) {
	cache.OnSettingsChange(func(settings domain.WorkspaceSettings) {
		p.prune(context.Background(), settings)
	})
}

// Identity returns the current user id, empty when anonymous.
func (p *PreferenceSynchronizer) Identity() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}

func (p *PreferenceSynchronizer) Preferences() domain.Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

func (p *PreferenceSynchronizer) Grouping() domain.BoardGrouping {
	return p.Preferences().Grouping
}

func (p *PreferenceSynchronizer) Filters() domain.BoardFilters {
	return p.Preferences().Filters
}

// EnsureIdentity switches to userID if it differs from the current
// identity, triggering the load sequence. The empty string is the
// anonymous identity.
func (p *PreferenceSynchronizer) EnsureIdentity(ctx context.Context, userID string) {
	p.mu.Lock()
	same := p.loaded && p.userID == userID
	p.mu.Unlock()
	if same {
		return
	}
	p.SetIdentity(ctx, userID)
}

// SetIdentity makes userID the current identity and loads its
// preferences: the locally cached record is the baseline, and a
// non-empty remote record overrides it (and refreshes the local
// cache). An empty remote payload keeps the cached record so a
// transient "no remote layout yet" response never clobbers it; a
// transport failure is logged and falls back to the cached record or
// defaults.
func (p *PreferenceSynchronizer) SetIdentity(ctx context.Context, userID string) {
	p.mu.Lock()
	p.userID = userID
	p.loaded = true
	p.mu.Unlock()

	adopted, ok := p.loadLocal(ctx, userID)
	if !ok {
		adopted = domain.DefaultPreferences()
	}

	if userID != "" {
		remote, ok, err := p.remote.GetPreferences(ctx, userID)
		switch {
		case err != nil:
			p.log.WithError(err).WithField("user", userID).Error("failed to load board preferences")
		case ok:
			remote = remote.Normalized()
			if !remote.IsDefault() {
				adopted = remote
				p.storeLocal(ctx, userID, remote)
			}
		}
	}

	p.mu.Lock()
	if p.userID != userID {
		// A newer identity switch superseded this load.
		p.mu.Unlock()
		return
	}
	p.prefs = adopted.Normalized()
	p.mu.Unlock()
	p.sig.Bump()
}

// SetGrouping applies the grouping synchronously and persists it:
// local cache first, then a best-effort remote write when a concrete
// identity exists.
func (p *PreferenceSynchronizer) SetGrouping(ctx context.Context, grouping domain.BoardGrouping) {
	p.mu.Lock()
	p.prefs.Grouping = grouping
	p.prefs = p.prefs.Normalized()
	prefs, userID := p.prefs, p.userID
	p.mu.Unlock()
	p.sig.Bump()
	p.persist(ctx, userID, prefs)
}

// UpdateFilters replaces the active filters, same persistence
// semantics as SetGrouping.
func (p *PreferenceSynchronizer) UpdateFilters(ctx context.Context, filters domain.BoardFilters) {
	p.mu.Lock()
	p.prefs.Filters = filters
	prefs, userID := p.prefs, p.userID
	p.mu.Unlock()
	p.sig.Bump()
	p.persist(ctx, userID, prefs)
}

// Flush waits for in-flight fire-and-forget remote writes. Called on
// shutdown and by tests.
func (p *PreferenceSynchronizer) Flush() {
	p.remoteWrites.Wait()
}

// prune drops filter references to statuses and labels that no longer
// exist. The pruned record is persisted locally only; the remote copy
// catches up on the next explicit update.
func (p *PreferenceSynchronizer) prune(ctx context.Context, settings domain.WorkspaceSettings) {
	p.mu.Lock()
	pruned := p.prefs.Filters.Pruned(settings)
	changed := !slices.Equal(pruned.LabelIDs, p.prefs.Filters.LabelIDs) ||
		!slices.Equal(pruned.StatusIDs, p.prefs.Filters.StatusIDs)
	if changed {
		p.prefs.Filters = pruned
	}
	prefs, userID := p.prefs, p.userID
	p.mu.Unlock()
	if !changed {
		return
	}
	p.sig.Bump()
	p.storeLocal(ctx, userID, prefs)
}

// persist writes to the local cache and then fires the remote write.
// The local write always happens regardless of the remote outcome, and
// the remote call never blocks the caller.
func (p *PreferenceSynchronizer) persist(ctx context.Context, userID string, prefs domain.Preferences) {
	p.storeLocal(ctx, userID, prefs)
	if userID == "" {
		return
	}
	p.remoteWrites.Add(1)
	go func() {
		defer p.remoteWrites.Done()
		// Detached from the caller's context: the write outlives the
		// request that triggered it.
		putCtx, cancel := context.WithTimeout(context.Background(), p.putTimeout)
		defer cancel()
		if err := p.remote.PutPreferences(putCtx, userID, prefs); err != nil {
			p.log.WithError(err).WithField("user", userID).Error("failed to sync board preferences")
		}
	}()
}

func (p *PreferenceSynchronizer) loadLocal(ctx context.Context, userID string) (domain.Preferences, bool) {
	if p.store == nil {
		return domain.Preferences{}, false
	}
	key := prefKey(userID)
	data, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.log.WithError(err).WithField("user", userID).Error("failed to read cached board preferences")
		return domain.Preferences{}, false
	}
	if !ok {
		return domain.Preferences{}, false
	}
	var prefs domain.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = p.store.Delete(ctx, key)
		return domain.Preferences{}, false
	}
	return prefs.Normalized(), true
}

func (p *PreferenceSynchronizer) storeLocal(ctx context.Context, userID string, prefs domain.Preferences) {
	if p.store == nil {
		return
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	if err := p.store.Put(ctx, prefKey(userID), data); err != nil {
		p.log.WithError(err).WithField("user", userID).Error("failed to cache board preferences")
	}
}
