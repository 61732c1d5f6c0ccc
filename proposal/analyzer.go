// Package proposal generates AI proposal drafts for a board. The
// engine never depends on this package: it produces ProposalDrafts,
// the importer consumes them.
package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

const (
	defaultModel        = "gpt-4o-mini"
	defaultMaxRetries   = 3
	defaultMaxProposals = 5
)

// Config configures the analysis endpoint. BaseURL may point at any
// OpenAI-compatible service.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// Analyzer turns a board goal into proposal drafts via a chat
// completion call.
type Analyzer struct {
	client     *openai.Client
	model      string
	maxRetries int
	log        *log.Logger
}

func NewAnalyzer(cfg Config, logger *log.Logger) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	clientCfg.HTTPClient = httpClient

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Analyzer{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		maxRetries: maxRetries,
		log:        logger,
	}
}

// Request describes one analysis run. Settings supply the status and
// label ids the model may suggest.
type Request struct {
	Goal         string
	Settings     domain.WorkspaceSettings
	MaxProposals int
}

// proposalsPayload is the strict-JSON reply shape requested from the
// model.
type proposalsPayload struct {
	Proposals []struct {
		Title             string   `json:"title"`
		Summary           string   `json:"summary"`
		SuggestedStatusID string   `json:"suggestedStatusId"`
		SuggestedLabelIDs []string `json:"suggestedLabelIds"`
		Subtasks          []string `json:"subtasks"`
		Confidence        float64  `json:"confidence"`
	} `json:"proposals"`
}

// Propose asks the model for proposal drafts. Transient failures are
// retried with exponential backoff; drafts without a title are
// dropped and confidence is clamped into [0,1].
func (a *Analyzer) Propose(ctx context.Context, req Request) ([]domain.ProposalDraft, error) {
	if strings.TrimSpace(req.Goal) == "" {
		return nil, fmt.Errorf("proposal: empty goal")
	}
	maxProposals := req.MaxProposals
	if maxProposals <= 0 {
		maxProposals = defaultMaxProposals
	}

	chatReq := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req.Settings, maxProposals)},
			{Role: openai.ChatMessageRoleUser, Content: req.Goal},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			a.log.WithError(lastErr).WithField("attempt", attempt).Debug("retrying proposal analysis")
		}

		resp, err := a.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("proposal: empty completion")
			continue
		}
		drafts, err := parseDrafts(resp.Choices[0].Message.Content, maxProposals)
		if err != nil {
			lastErr = err
			continue
		}
		return drafts, nil
	}
	return nil, fmt.Errorf("proposal: analysis failed: %w", lastErr)
}

func systemPrompt(settings domain.WorkspaceSettings, maxProposals int) string {
	var b strings.Builder
	b.WriteString("You break a product goal into board cards. ")
	fmt.Fprintf(&b, "Reply with a JSON object {\"proposals\": [...]} holding at most %d proposals. ", maxProposals)
	b.WriteString("Each proposal has title, summary, suggestedStatusId, suggestedLabelIds, subtasks and confidence in [0,1].\n")
	b.WriteString("Valid status ids:")
	for _, st := range settings.Statuses {
		fmt.Fprintf(&b, " %s (%s)", st.ID, st.Name)
	}
	b.WriteString("\nValid label ids:")
	for _, l := range settings.Labels {
		fmt.Fprintf(&b, " %s (%s)", l.ID, l.Name)
	}
	return b.String()
}

func parseDrafts(content string, maxProposals int) ([]domain.ProposalDraft, error) {
	content = stripFences(content)
	var payload proposalsPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("proposal: decode completion: %w", err)
	}

	drafts := make([]domain.ProposalDraft, 0, len(payload.Proposals))
	for _, p := range payload.Proposals {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		confidence := p.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		drafts = append(drafts, domain.ProposalDraft{
			ID:                uuid.NewString(),
			Title:             strings.TrimSpace(p.Title),
			Summary:           strings.TrimSpace(p.Summary),
			SuggestedStatusID: p.SuggestedStatusID,
			SuggestedLabelIDs: p.SuggestedLabelIDs,
			Subtasks:          p.Subtasks,
			Confidence:        confidence,
		})
		if len(drafts) == maxProposals {
			break
		}
	}
	return drafts, nil
}

// stripFences tolerates models that wrap JSON in a markdown code
// block despite the response format.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
