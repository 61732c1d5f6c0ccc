package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"boardsync/domain"
)

// maxResponseSize bounds how much of a board service response is read.
const maxResponseSize = 8 << 20

const defaultHTTPTimeout = 30 * time.Second

// HTTP talks to the board service over its REST API.
type HTTP struct {
	base   string
	auth   string
	client *http.Client
}

func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// WithHTTPClient replaces the underlying http.Client, for custom
// transports and tests.
func (h *HTTP) WithHTTPClient(client *http.Client) *HTTP {
	h.client = client
	return h
}

// WithAuthHeader sets the Authorization header value sent on every
// request.
func (h *HTTP) WithAuthHeader(value string) *HTTP {
	h.auth = value
	return h
}

func (h *HTTP) ListCards(ctx context.Context, query domain.CardQuery) ([]domain.Card, error) {
	params := url.Values{}
	if query.StatusID != "" {
		params.Set("statusId", query.StatusID)
	}
	if query.Assignee != "" {
		params.Set("assignee", query.Assignee)
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	path := "/api/cards"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var cards []domain.Card
	if err := h.do(ctx, http.MethodGet, path, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (h *HTTP) CreateCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	var created domain.Card
	if err := h.do(ctx, http.MethodPost, "/api/cards", card, &created); err != nil {
		return domain.Card{}, err
	}
	return created, nil
}

func (h *HTTP) UpdateCardStatus(ctx context.Context, cardID, statusID string) error {
	path := "/api/cards/" + url.PathEscape(cardID) + "/status"
	return h.do(ctx, http.MethodPost, path, map[string]string{"statusId": statusID}, nil)
}

func (h *HTTP) DeleteCard(ctx context.Context, cardID string) error {
	return h.do(ctx, http.MethodDelete, "/api/cards/"+url.PathEscape(cardID), nil, nil)
}

func (h *HTTP) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	var statuses []domain.Status
	if err := h.do(ctx, http.MethodGet, "/api/statuses", nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (h *HTTP) ListLabels(ctx context.Context) ([]domain.Label, error) {
	var labels []domain.Label
	if err := h.do(ctx, http.MethodGet, "/api/labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func (h *HTTP) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	var templates []domain.Template
	if err := h.do(ctx, http.MethodGet, "/api/templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (h *HTTP) GetPreferences(ctx context.Context, userID string) (domain.Preferences, bool, error) {
	var record preferenceRecord
	err := h.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/preferences", nil, &record)
	if err == ErrNotFound {
		return domain.Preferences{}, false, nil
	}
	if err != nil {
		return domain.Preferences{}, false, err
	}
	prefs, ok := record.decode()
	return prefs, ok, nil
}

func (h *HTTP) PutPreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	path := "/api/users/" + url.PathEscape(userID) + "/preferences"
	return h.do(ctx, http.MethodPut, path, encodePreferenceRecord(prefs), nil)
}

func (h *HTTP) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("board api: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, reader)
	if err != nil {
		return fmt.Errorf("board api: %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.auth != "" {
		req.Header.Set("Authorization", h.auth)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("board api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("board api: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("board api: decode %s %s: %w", method, path, err)
	}
	return nil
}
