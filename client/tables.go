package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"boardsync/domain"
)

// Tables is a Board API implementation backed directly by Azure Table
// Storage, for deployments that skip the board service and own the
// tables. Card mutations additionally enqueue a change event for
// downstream read-model consumers.
type Tables struct {
	cards       *aztables.Client
	config      *aztables.Client
	preferences *aztables.Client
	events      *azqueue.QueueClient
	boardID     string
}

// NewTables creates a Tables client from the given connection string.
// boardID partitions the cards and config tables.
func NewTables(connStr, cardsTable, configTable, preferencesTable, eventsQueue, boardID string) (*Tables, error) {
	tableOpts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tableOpts)
	if err != nil {
		return nil, err
	}
	queueOpts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	events, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueOpts)
	if err != nil {
		return nil, err
	}
	return &Tables{
		cards:       svc.NewClient(cardsTable),
		config:      svc.NewClient(configTable),
		preferences: svc.NewClient(preferencesTable),
		events:      events,
		boardID:     boardID,
	}, nil
}

type cardEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Summary     string `json:"Summary"`
	StatusID    string `json:"StatusId"`
	LabelIDs    string `json:"LabelIds"` // JSON-encoded string slice
	Priority    string `json:"Priority"`
	StoryPoints int    `json:"StoryPoints"`
	Assignee    string `json:"Assignee"`
	DueDate     string `json:"DueDate"` // RFC3339, empty when unset
	Subtasks    string `json:"Subtasks"`
	Origin      string `json:"Origin"`
}

func (e cardEntity) toCard() (domain.Card, error) {
	card := domain.Card{
		ID:                 e.RowKey,
		Title:              e.Title,
		Summary:            e.Summary,
		StatusID:           e.StatusID,
		Priority:           e.Priority,
		StoryPoints:        e.StoryPoints,
		Assignee:           e.Assignee,
		OriginSuggestionID: e.Origin,
	}
	if e.LabelIDs != "" {
		if err := json.Unmarshal([]byte(e.LabelIDs), &card.LabelIDs); err != nil {
			return domain.Card{}, fmt.Errorf("card %s: decode labels: %w", e.RowKey, err)
		}
	}
	if e.Subtasks != "" {
		if err := json.Unmarshal([]byte(e.Subtasks), &card.Subtasks); err != nil {
			return domain.Card{}, fmt.Errorf("card %s: decode subtasks: %w", e.RowKey, err)
		}
	}
	if e.DueDate != "" {
		due, err := time.Parse(time.RFC3339, e.DueDate)
		if err != nil {
			return domain.Card{}, fmt.Errorf("card %s: decode due date: %w", e.RowKey, err)
		}
		card.DueDate = &due
	}
	return card, nil
}

func (t *Tables) cardToEntity(card domain.Card) (cardEntity, error) {
	labels, err := json.Marshal(card.LabelIDs)
	if err != nil {
		return cardEntity{}, err
	}
	subtasks, err := json.Marshal(card.Subtasks)
	if err != nil {
		return cardEntity{}, err
	}
	ent := cardEntity{
		Entity:      aztables.Entity{PartitionKey: t.boardID, RowKey: card.ID},
		Title:       card.Title,
		Summary:     card.Summary,
		StatusID:    card.StatusID,
		LabelIDs:    string(labels),
		Priority:    card.Priority,
		StoryPoints: card.StoryPoints,
		Assignee:    card.Assignee,
		Subtasks:    string(subtasks),
		Origin:      card.OriginSuggestionID,
	}
	if card.DueDate != nil {
		ent.DueDate = card.DueDate.UTC().Format(time.RFC3339)
	}
	return ent, nil
}

func (t *Tables) ListCards(ctx context.Context, query domain.CardQuery) ([]domain.Card, error) {
	filter := "PartitionKey eq '" + t.boardID + "'"
	if query.StatusID != "" {
		filter += " and StatusId eq '" + query.StatusID + "'"
	}
	if query.Assignee != "" {
		filter += " and Assignee eq '" + query.Assignee + "'"
	}
	pager := t.cards.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cards := []domain.Card{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent cardEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			card, err := ent.toCard()
			if err != nil {
				return nil, err
			}
			cards = append(cards, card)
			if query.Limit > 0 && len(cards) >= query.Limit {
				return cards, nil
			}
		}
	}
	return cards, nil
}

func (t *Tables) CreateCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	ent, err := t.cardToEntity(card)
	if err != nil {
		return domain.Card{}, err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Card{}, err
	}
	if _, err := t.cards.AddEntity(ctx, payload, nil); err != nil {
		return domain.Card{}, err
	}
	if err := t.enqueueEvent(ctx, "card-created", card.ID); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

func (t *Tables) UpdateCardStatus(ctx context.Context, cardID, statusID string) error {
	ent := map[string]any{
		"PartitionKey": t.boardID,
		"RowKey":       cardID,
		"StatusId":     statusID,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	opts := aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeMerge}
	if _, err := t.cards.UpsertEntity(ctx, payload, &opts); err != nil {
		return err
	}
	return t.enqueueEvent(ctx, "card-updated", cardID)
}

func (t *Tables) DeleteCard(ctx context.Context, cardID string) error {
	if _, err := t.cards.DeleteEntity(ctx, t.boardID, cardID, nil); err != nil {
		return err
	}
	return t.enqueueEvent(ctx, "card-deleted", cardID)
}

// Config table rows: one partition per entity kind.
const (
	configKindStatus   = "status"
	configKindLabel    = "label"
	configKindTemplate = "template"
	configKindBoard    = "board"
)

type configEntity struct {
	aztables.Entity
	Name            string `json:"Name"`
	Category        string `json:"Category"`
	Order           int    `json:"Order"`
	Color           string `json:"Color"`
	Description     string `json:"Description"`
	DefaultStatusID string `json:"DefaultStatusId"`
}

func (t *Tables) listConfig(ctx context.Context, kind string) ([]configEntity, error) {
	filter := "PartitionKey eq '" + t.boardID + ":" + kind + "'"
	pager := t.config.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	entities := []configEntity{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent configEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			entities = append(entities, ent)
		}
	}
	return entities, nil
}

func (t *Tables) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	entities, err := t.listConfig(ctx, configKindStatus)
	if err != nil {
		return nil, err
	}
	statuses := make([]domain.Status, 0, len(entities))
	for _, ent := range entities {
		statuses = append(statuses, domain.Status{
			ID:       ent.RowKey,
			Name:     ent.Name,
			Category: ent.Category,
			Order:    ent.Order,
		})
	}
	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].Order < statuses[j].Order })
	return statuses, nil
}

func (t *Tables) ListLabels(ctx context.Context) ([]domain.Label, error) {
	entities, err := t.listConfig(ctx, configKindLabel)
	if err != nil {
		return nil, err
	}
	labels := make([]domain.Label, 0, len(entities))
	for _, ent := range entities {
		labels = append(labels, domain.Label{ID: ent.RowKey, Name: ent.Name, Color: ent.Color})
	}
	return labels, nil
}

func (t *Tables) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	entities, err := t.listConfig(ctx, configKindTemplate)
	if err != nil {
		return nil, err
	}
	templates := make([]domain.Template, 0, len(entities))
	for _, ent := range entities {
		templates = append(templates, domain.Template{ID: ent.RowKey, Name: ent.Name, Description: ent.Description})
	}
	return templates, nil
}

// DefaultStatusID reads the board-level default status from the config
// table. Missing config is not an error; it returns the empty id.
func (t *Tables) DefaultStatusID(ctx context.Context) (string, error) {
	ent, err := t.config.GetEntity(ctx, t.boardID+":"+configKindBoard, t.boardID, nil)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	var cfg configEntity
	if err := json.Unmarshal(ent.Value, &cfg); err != nil {
		return "", err
	}
	return cfg.DefaultStatusID, nil
}

type preferenceEntity struct {
	aztables.Entity
	Grouping string `json:"Grouping"`
	Layout   string `json:"Layout"` // JSON-encoded BoardFilters
}

func (t *Tables) GetPreferences(ctx context.Context, userID string) (domain.Preferences, bool, error) {
	ent, err := t.preferences.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Preferences{}, false, nil
		}
		return domain.Preferences{}, false, err
	}
	var stored preferenceEntity
	if err := json.Unmarshal(ent.Value, &stored); err != nil {
		return domain.Preferences{}, false, err
	}
	record := preferenceRecord{}
	if stored.Grouping != "" {
		record.BoardGrouping = &stored.Grouping
	}
	if stored.Layout != "" {
		var filters domain.BoardFilters
		if err := json.Unmarshal([]byte(stored.Layout), &filters); err != nil {
			return domain.Preferences{}, false, err
		}
		record.BoardLayout = &filters
	}
	prefs, ok := record.decode()
	return prefs, ok, nil
}

func (t *Tables) PutPreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	layout, err := json.Marshal(prefs.Filters)
	if err != nil {
		return err
	}
	ent := preferenceEntity{
		Entity:   aztables.Entity{PartitionKey: userID, RowKey: userID},
		Grouping: string(prefs.Grouping),
		Layout:   string(layout),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = t.preferences.UpsertEntity(ctx, payload, nil)
	return err
}

// changeEvent mirrors the envelope the read-model pipeline consumes.
type changeEvent struct {
	BoardID   string `json:"boardId"`
	CardID    string `json:"cardId"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func (t *Tables) enqueueEvent(ctx context.Context, eventType, cardID string) error {
	ev := changeEvent{
		BoardID:   t.boardID,
		CardID:    cardID,
		Type:      eventType,
		Timestamp: nextTimestamp(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = t.events.EnqueueMessage(ctx, string(data), nil)
	return err
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

var lastTimestamp int64

// nextTimestamp returns strictly increasing unix-nano timestamps even
// when the clock does not move between calls.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
