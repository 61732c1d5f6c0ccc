package board

import (
	"context"
	"sync"

	"boardsync/domain"
)

// EntityCache holds the current snapshot of cards and workspace
// settings. Persisted cards are owned by the cache: nothing outside it
// mutates a card once it is inserted. All persistence is delegated to
// the Board API client by higher-level components.
type EntityCache struct {
	mu       sync.RWMutex
	cards    []domain.Card
	settings domain.WorkspaceSettings

	cardsSig    signal
	settingsSig signal
}

func NewEntityCache() *EntityCache {
	return &EntityCache{}
}

// Cards returns a copy of the current card snapshot.
func (c *EntityCache) Cards() []domain.Card {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Card(nil), c.cards...)
}

// Settings returns the current workspace settings snapshot. The slices
// inside are immutable within a snapshot and must not be modified.
func (c *EntityCache) Settings() domain.WorkspaceSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// ReplaceCards swaps the full card snapshot.
func (c *EntityCache) ReplaceCards(cards []domain.Card) {
	c.mu.Lock()
	c.cards = append([]domain.Card(nil), cards...)
	c.mu.Unlock()
	c.cardsSig.Bump()
}

// ReplaceSettings swaps the workspace settings snapshot and notifies
// settings observers (the preference synchronizer prunes its filter
// references on this signal).
func (c *EntityCache) ReplaceSettings(settings domain.WorkspaceSettings) {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	c.settingsSig.Bump()
}

// PrependCards inserts a batch of freshly persisted cards at the head
// of the snapshot, most recent first. Used by the proposal importer
// after a fully successful batch.
func (c *EntityCache) PrependCards(cards []domain.Card) {
	if len(cards) == 0 {
		return
	}
	c.mu.Lock()
	next := make([]domain.Card, 0, len(cards)+len(c.cards))
	next = append(next, cards...)
	next = append(next, c.cards...)
	c.cards = next
	c.mu.Unlock()
	c.cardsSig.Bump()
}

// UpdateCardStatus reassigns a card's status in place and reports
// whether the card was found. The target status id is not validated
// against the known statuses; callers are expected to supply a valid
// one.
func (c *EntityCache) UpdateCardStatus(cardID, statusID string) bool {
	c.mu.Lock()
	found := false
	for i := range c.cards {
		if c.cards[i].ID == cardID {
			c.cards[i].StatusID = statusID
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found {
		c.cardsSig.Bump()
	}
	return found
}

// OnSettingsChange registers fn to run with the new settings snapshot
// after every ReplaceSettings.
func (c *EntityCache) OnSettingsChange(fn func(domain.WorkspaceSettings)) {
	c.settingsSig.Subscribe(func() {
		fn(c.Settings())
	})
}

// OnCardsChange registers fn to run after every card mutation.
func (c *EntityCache) OnCardsChange(fn func()) {
	c.cardsSig.Subscribe(fn)
}

// WorkspaceClient is the slice of the Board API client the cache
// refresh path consumes.
type WorkspaceClient interface {
	ListCards(ctx context.Context, query domain.CardQuery) ([]domain.Card, error)
	ListStatuses(ctx context.Context) ([]domain.Status, error)
	ListLabels(ctx context.Context) ([]domain.Label, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
}

// RefreshWorkspace reloads settings and cards from the remote into the
// cache. The configured default status id survives the refresh; it is
// deployment configuration, not remote state. Settings are replaced
// before cards so the settings-change observers see reference sets at
// least as new as the cards they validate against.
func RefreshWorkspace(ctx context.Context, api WorkspaceClient, cache *EntityCache) error {
	statuses, err := api.ListStatuses(ctx)
	if err != nil {
		return err
	}
	labels, err := api.ListLabels(ctx)
	if err != nil {
		return err
	}
	templates, err := api.ListTemplates(ctx)
	if err != nil {
		return err
	}
	cards, err := api.ListCards(ctx, domain.CardQuery{})
	if err != nil {
		return err
	}
	cache.ReplaceSettings(domain.WorkspaceSettings{
		Statuses:        statuses,
		Labels:          labels,
		Templates:       templates,
		DefaultStatusID: cache.Settings().DefaultStatusID,
	})
	cache.ReplaceCards(cards)
	return nil
}
