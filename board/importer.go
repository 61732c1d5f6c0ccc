package board

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"boardsync/domain"
)

const tracerName = "boardsync/board"

// CardWriter is the slice of the Board API client the importer
// consumes.
type CardWriter interface {
	CreateCard(ctx context.Context, card domain.Card) (domain.Card, error)
	DeleteCard(ctx context.Context, cardID string) error
}

// untitledCard fills in for drafts whose analysis produced no title.
const untitledCard = "Untitled card"

// Importer persists AI-origin proposal drafts as cards with
// all-or-nothing visibility: creates run sequentially in draft order,
// and the first failure rolls back every prior create in reverse
// order before the error is returned. The entity cache only ever sees
// a fully imported batch.
type Importer struct {
	cache  *EntityCache
	client CardWriter
	log    *log.Logger
}

func NewImporter(cache *EntityCache, client CardWriter, logger *log.Logger) *Importer {
	if cache == nil || client == nil {
		panic("board.NewImporter: nil cache or client")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Importer{cache: cache, client: client, log: logger}
}

// Import creates one card per draft and prepends the batch to the
// cache on full success. Import is not idempotent: every call creates
// new cards.
func (imp *Importer) Import(ctx context.Context, drafts []domain.ProposalDraft) ([]domain.Card, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "board.import_proposals",
		trace.WithAttributes(attribute.Int("board.drafts", len(drafts))))
	defer span.End()

	settings := imp.cache.Settings()
	created := make([]domain.Card, 0, len(drafts))
	for i, draft := range drafts {
		card, err := imp.client.CreateCard(ctx, cardFromDraft(draft, settings))
		if err != nil {
			rolledBack := imp.rollback(ctx, created)
			span.SetAttributes(
				attribute.Int("board.created", len(created)),
				attribute.Int("board.rolled_back", rolledBack),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "import failed")
			return nil, fmt.Errorf("create card for draft %d: %w", i, err)
		}
		created = append(created, card)
	}

	imp.cache.PrependCards(created)
	span.SetAttributes(attribute.Int("board.created", len(created)))
	return created, nil
}

// rollback deletes the created cards in reverse order. Deletes are
// best-effort: a failing delete is logged and rollback continues, so a
// card may be leaked server-side. Returns the number of successful
// deletes.
func (imp *Importer) rollback(ctx context.Context, created []domain.Card) int {
	deleted := 0
	for i := len(created) - 1; i >= 0; i-- {
		if err := imp.client.DeleteCard(ctx, created[i].ID); err != nil {
			imp.log.WithError(err).WithField("card", created[i].ID).Error("failed to roll back imported card")
			continue
		}
		deleted++
	}
	return deleted
}

// cardFromDraft resolves a draft against the current settings snapshot.
// Status fallback chain: suggested id if known, then the configured
// default status if known, then the first status in board order.
func cardFromDraft(draft domain.ProposalDraft, settings domain.WorkspaceSettings) domain.Card {
	title := draft.Title
	if title == "" {
		title = untitledCard
	}
	return domain.Card{
		Title:              title,
		Summary:            draft.Summary,
		StatusID:           resolveStatusID(draft.SuggestedStatusID, settings),
		LabelIDs:           resolveLabelIDs(draft.SuggestedLabelIDs, settings),
		Subtasks:           append([]string(nil), draft.Subtasks...),
		OriginSuggestionID: draft.ID,
	}
}

func resolveStatusID(suggested string, settings domain.WorkspaceSettings) string {
	known := settings.StatusIDs()
	if _, ok := known[suggested]; ok {
		return suggested
	}
	if _, ok := known[settings.DefaultStatusID]; ok {
		return settings.DefaultStatusID
	}
	if ordered := orderedStatuses(settings); len(ordered) > 0 {
		return ordered[0].ID
	}
	return ""
}

// resolveLabelIDs keeps the known suggestions, deduplicated in order.
// Only a draft that suggested no labels at all falls back to the first
// known label; a draft whose suggestions were all unknown stays
// unlabeled.
func resolveLabelIDs(suggested []string, settings domain.WorkspaceSettings) []string {
	if len(suggested) == 0 {
		if len(settings.Labels) == 0 {
			return nil
		}
		return []string{settings.Labels[0].ID}
	}
	known := settings.LabelIDs()
	seen := make(map[string]struct{}, len(suggested))
	out := make([]string, 0, len(suggested))
	for _, id := range suggested {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// orderedStatuses returns the statuses sorted by board order.
func orderedStatuses(settings domain.WorkspaceSettings) []domain.Status {
	out := append([]domain.Status(nil), settings.Statuses...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
