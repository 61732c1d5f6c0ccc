package api

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"boardsync/board"
	"boardsync/domain"
	"boardsync/proposal"
)

// userIDHeader carries the caller identity. An absent header means
// the anonymous identity, the empty string.
const userIDHeader = "X-User-ID"

// maxBodySize bounds request bodies on mutating routes.
const maxBodySize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, eng Engine, logger *log.Logger) {
	e.GET("/api/board", getBoard(eng, logger))
	e.GET("/api/preferences", getPreferences(eng))
	e.PUT("/api/preferences", putPreferences(eng))
	e.POST("/api/cards/:id/status", postCardStatus(eng))
	e.POST("/api/proposals/analyze", postAnalyze(eng))
	e.POST("/api/proposals/import", postImport(eng))
	e.GET("/api/notifications", getNotifications(eng))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func identityFromRequest(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(userIDHeader))
}

func getBoard(eng Engine, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/board")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		eng.Prefs.EnsureIdentity(ctx, identityFromRequest(c))

		fetchStart := time.Now()
		columns := eng.View.Columns()
		cards := eng.Cache.Cards()
		settings := eng.Cache.Settings()
		metrics.ObserveFetch(time.Since(fetchStart))
		metrics.SetCardsReturned(len(cards))
		metrics.SetColumnsReturned(len(columns))

		resp := boardResponse{
			Grouping: eng.Prefs.Grouping(),
			Filters:  eng.Prefs.Filters(),
			Columns:  columns,
			Cards:    cards,
			Settings: settings,
		}
		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, resp)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getPreferences(eng Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		eng.Prefs.EnsureIdentity(c.Request().Context(), identityFromRequest(c))
		return c.JSON(http.StatusOK, preferencesResponse{
			Grouping: eng.Prefs.Grouping(),
			Filters:  eng.Prefs.Filters(),
		})
	}
}

func putPreferences(eng Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		eng.Prefs.EnsureIdentity(ctx, identityFromRequest(c))

		var req preferencesRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Grouping != nil {
			grouping, ok := domain.ParseGrouping(*req.Grouping)
			if !ok {
				return c.String(http.StatusBadRequest, "unknown grouping")
			}
			eng.Prefs.SetGrouping(ctx, grouping)
		}
		if req.Filters != nil {
			eng.Prefs.UpdateFilters(ctx, *req.Filters)
		}
		return c.JSON(http.StatusOK, preferencesResponse{
			Grouping: eng.Prefs.Grouping(),
			Filters:  eng.Prefs.Filters(),
		})
	}
}

func postCardStatus(eng Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		cardID := c.Param("id")

		var req cardStatusRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.StatusID == "" {
			return c.String(http.StatusBadRequest, "missing status id")
		}

		prev, found := currentStatus(eng.Cache, cardID)
		if !found {
			return c.String(http.StatusNotFound, "unknown card")
		}

		// Apply locally first so the board reflects the move right
		// away; revert if the backend rejects it.
		eng.Cache.UpdateCardStatus(cardID, req.StatusID)
		if err := eng.Cards.UpdateCardStatus(ctx, cardID, req.StatusID); err != nil {
			eng.Cache.UpdateCardStatus(cardID, prev)
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "status change not persisted")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func currentStatus(cache *board.EntityCache, cardID string) (string, bool) {
	for _, card := range cache.Cards() {
		if card.ID == cardID {
			return card.StatusID, true
		}
	}
	return "", false
}

func postAnalyze(eng Engine) echo.HandlerFunc {
	var mu sync.Mutex
	lastGoal := ""
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var req analyzeRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		goal := strings.TrimSpace(req.Goal)
		if goal == "" {
			return c.String(http.StatusBadRequest, "missing goal")
		}

		mu.Lock()
		if goal != lastGoal {
			eng.Tracker.Reset()
			lastGoal = goal
		}
		mu.Unlock()

		version := eng.Tracker.Loading("Analyzing goal")
		drafts, err := eng.Analyzer.Propose(ctx, proposal.Request{
			Goal:         goal,
			Settings:     eng.Cache.Settings(),
			MaxProposals: req.MaxProposals,
		})
		if err != nil {
			eng.Tracker.Fail(version, "Analysis failed")
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "analysis failed")
		}
		if len(drafts) == 0 {
			eng.Tracker.Empty(version, "No proposals for this goal")
			return c.JSON(http.StatusOK, analyzeResponse{Drafts: []domain.ProposalDraft{}})
		}
		eng.Tracker.Succeed(version, "Proposals ready", draftIDs(drafts))
		return c.JSON(http.StatusOK, analyzeResponse{Drafts: drafts})
	}
}

func postImport(eng Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var req importRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if len(req.Drafts) == 0 {
			return c.String(http.StatusBadRequest, "no drafts to import")
		}

		version := eng.Tracker.Loading("Importing proposals")
		cards, err := eng.Importer.Import(ctx, req.Drafts)
		if err != nil {
			eng.Tracker.Fail(version, "Import failed")
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "import failed")
		}
		if len(cards) == 0 {
			eng.Tracker.Empty(version, "Nothing to import")
			return c.JSON(http.StatusOK, importResponse{Cards: []domain.Card{}})
		}
		ids := make([]string, len(cards))
		for i, card := range cards {
			ids[i] = card.ID
		}
		eng.Tracker.Succeed(version, "Proposals imported", ids)
		return c.JSON(http.StatusCreated, importResponse{Cards: cards})
	}
}

func getNotifications(eng Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := notificationResponse{Highlighted: eng.Tracker.Highlighted()}
		if n, ok := eng.Banner.Current(); ok {
			resp.Active = true
			resp.Kind = n.Kind
			resp.Message = n.Message
			resp.Sticky = n.Sticky
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func draftIDs(drafts []domain.ProposalDraft) []string {
	ids := make([]string, len(drafts))
	for i, d := range drafts {
		ids[i] = d.ID
	}
	return ids
}
