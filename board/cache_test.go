package board

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"boardsync/domain"
)

func TestCacheUpdateCardStatus(t *testing.T) {
	cache := NewEntityCache()
	cache.ReplaceCards([]domain.Card{
		{ID: "c1", Title: "one", StatusID: "status-todo"},
		{ID: "c2", Title: "two", StatusID: "status-todo"},
	})

	if !cache.UpdateCardStatus("c2", "status-done") {
		t.Fatal("expected card to be found")
	}
	cards := cache.Cards()
	if cards[1].StatusID != "status-done" {
		t.Fatalf("status not updated: %#v", cards[1])
	}
	if cards[0].StatusID != "status-todo" {
		t.Fatalf("unrelated card touched: %#v", cards[0])
	}

	if cache.UpdateCardStatus("missing", "status-done") {
		t.Fatal("unknown card should not be found")
	}
	// No status-id validation happens at this layer.
	if !cache.UpdateCardStatus("c1", "status-nonexistent") {
		t.Fatal("update with unknown status id should still apply")
	}
}

func TestCachePrependCards(t *testing.T) {
	cache := NewEntityCache()
	cache.ReplaceCards([]domain.Card{{ID: "old"}})

	cache.PrependCards([]domain.Card{{ID: "new-1"}, {ID: "new-2"}})

	got := cache.Cards()
	want := []string{"new-1", "new-2", "old"}
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestCacheCardsReturnsCopy(t *testing.T) {
	cache := NewEntityCache()
	cache.ReplaceCards([]domain.Card{{ID: "c1", Title: "original"}})

	snapshot := cache.Cards()
	snapshot[0].Title = "mutated"

	if cache.Cards()[0].Title != "original" {
		t.Fatal("external mutation leaked into the cache")
	}
}

func TestCacheSettingsObserver(t *testing.T) {
	cache := NewEntityCache()
	var seen []domain.WorkspaceSettings
	cache.OnSettingsChange(func(s domain.WorkspaceSettings) { seen = append(seen, s) })

	settings := domain.WorkspaceSettings{Statuses: []domain.Status{{ID: "s1"}}}
	cache.ReplaceSettings(settings)

	if len(seen) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(seen))
	}
	if len(seen[0].Statuses) != 1 || seen[0].Statuses[0].ID != "s1" {
		t.Fatalf("observer saw stale settings: %#v", seen[0])
	}
}

type stubWorkspaceClient struct {
	listCardsFn     func(ctx context.Context, q domain.CardQuery) ([]domain.Card, error)
	listStatusesFn  func(ctx context.Context) ([]domain.Status, error)
	listLabelsFn    func(ctx context.Context) ([]domain.Label, error)
	listTemplatesFn func(ctx context.Context) ([]domain.Template, error)
}

func (s *stubWorkspaceClient) ListCards(ctx context.Context, q domain.CardQuery) ([]domain.Card, error) {
	if s.listCardsFn == nil {
		return nil, errors.New("unexpected ListCards call")
	}
	return s.listCardsFn(ctx, q)
}

func (s *stubWorkspaceClient) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	if s.listStatusesFn == nil {
		return nil, errors.New("unexpected ListStatuses call")
	}
	return s.listStatusesFn(ctx)
}

func (s *stubWorkspaceClient) ListLabels(ctx context.Context) ([]domain.Label, error) {
	if s.listLabelsFn == nil {
		return nil, errors.New("unexpected ListLabels call")
	}
	return s.listLabelsFn(ctx)
}

func (s *stubWorkspaceClient) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	if s.listTemplatesFn == nil {
		return nil, errors.New("unexpected ListTemplates call")
	}
	return s.listTemplatesFn(ctx)
}

func TestRefreshWorkspace(t *testing.T) {
	cache := NewEntityCache()
	cache.ReplaceSettings(domain.WorkspaceSettings{DefaultStatusID: "status-todo"})

	api := &stubWorkspaceClient{
		listCardsFn: func(ctx context.Context, q domain.CardQuery) ([]domain.Card, error) {
			return []domain.Card{{ID: "c1", StatusID: "status-todo"}}, nil
		},
		listStatusesFn: func(ctx context.Context) ([]domain.Status, error) {
			return []domain.Status{{ID: "status-todo", Name: "To do", Category: domain.CategoryTodo}}, nil
		},
		listLabelsFn: func(ctx context.Context) ([]domain.Label, error) {
			return []domain.Label{{ID: "label-1", Name: "UX"}}, nil
		},
		listTemplatesFn: func(ctx context.Context) ([]domain.Template, error) {
			return nil, nil
		},
	}

	if err := RefreshWorkspace(context.Background(), api, cache); err != nil {
		t.Fatalf("refresh workspace: %v", err)
	}

	settings := cache.Settings()
	if settings.DefaultStatusID != "status-todo" {
		t.Fatalf("default status id lost on refresh: %q", settings.DefaultStatusID)
	}
	if len(settings.Statuses) != 1 || len(settings.Labels) != 1 {
		t.Fatalf("unexpected settings: %#v", settings)
	}
	if len(cache.Cards()) != 1 {
		t.Fatalf("unexpected cards: %#v", cache.Cards())
	}
}

func TestRefreshWorkspaceRemoteFailureLeavesCacheUntouched(t *testing.T) {
	cache := NewEntityCache()
	cache.ReplaceCards([]domain.Card{{ID: "keep"}})

	api := &stubWorkspaceClient{
		listStatusesFn: func(ctx context.Context) ([]domain.Status, error) {
			return nil, errors.New("boom")
		},
	}

	if err := RefreshWorkspace(context.Background(), api, cache); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.Cards()) != 1 || cache.Cards()[0].ID != "keep" {
		t.Fatalf("cache mutated on failed refresh: %#v", cache.Cards())
	}
}
