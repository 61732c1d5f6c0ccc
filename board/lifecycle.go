package board

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// NotificationKind classifies a user-facing status notification.
type NotificationKind string

const (
	NotifyProgress NotificationKind = "progress"
	NotifySuccess  NotificationKind = "success"
	NotifyError    NotificationKind = "error"
	NotifyNotice   NotificationKind = "notice"
)

// Notification is a single user-facing status message. Sticky
// notifications stay until replaced or cleared; others auto-dismiss.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Sticky  bool             `json:"sticky,omitempty"`
}

// Notifier displays at most one notification at a time.
type Notifier interface {
	Show(n Notification)
	Clear()
}

const (
	defaultDismissAfter   = 6 * time.Second
	defaultHighlightAfter = 3 * time.Second
)

// RequestTracker wraps a single outstanding derived-data request and
// de-duplicates its user-facing notifications. Each terminal outcome
// is fingerprinted as kind:version:detail; an outcome whose
// fingerprint matches the last seen one is suppressed, so re-runs of
// the same request that land on the same result never re-notify.
// Results carrying a request version that is no longer current are
// stale and ignored outright.
type RequestTracker struct {
	mu       sync.Mutex
	notifier Notifier

	version         int
	lastFingerprint string
	loadingShown    bool
	highlight       bool

	dismissTimer   *time.Timer
	highlightTimer *time.Timer
	dismissAfter   time.Duration
	highlightAfter time.Duration
	after          func(d time.Duration, fn func()) *time.Timer
}

func NewRequestTracker(notifier Notifier) *RequestTracker {
	if notifier == nil {
		panic("board.NewRequestTracker: notifier is nil")
	}
	return &RequestTracker{
		notifier:       notifier,
		dismissAfter:   defaultDismissAfter,
		highlightAfter: defaultHighlightAfter,
		after:          time.AfterFunc,
	}
}

// Version returns the current request version. Callers capture it when
// issuing a request and hand it back with the terminal outcome.
func (t *RequestTracker) Version() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Highlighted reports the transient presentation-emphasis flag set by
// a fresh success.
func (t *RequestTracker) Highlighted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highlight
}

// Reset marks a change of the tracked input parameter: the version
// advances (logically cancelling any in-flight request), the
// fingerprint and highlight are cleared, pending timers are stopped
// and the displayed notification is removed.
func (t *RequestTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version++
	t.lastFingerprint = ""
	t.loadingShown = false
	t.highlight = false
	t.stopTimers()
	t.notifier.Clear()
}

// Loading shows the sticky in-progress notification and returns the
// version the caller should report the terminal outcome against.
// Re-entering loading is idempotent.
func (t *RequestTracker) Loading(message string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimers()
	t.highlight = false
	if !t.loadingShown {
		t.loadingShown = true
		t.notifier.Show(Notification{Kind: NotifyProgress, Message: message, Sticky: true})
	}
	return t.version
}

// Fail records a terminal error for the request issued at version.
func (t *RequestTracker) Fail(version int, message string) {
	t.terminal(version, NotifyError, "error", "", message, false)
}

// Empty records a terminal empty result for the request issued at
// version.
func (t *RequestTracker) Empty(version int, message string) {
	t.terminal(version, NotifyNotice, "notice", "", message, false)
}

// Succeed records a terminal success carrying the result ids. A novel
// result also raises the transient highlight flag.
func (t *RequestTracker) Succeed(version int, message string, resultIDs []string) {
	t.terminal(version, NotifySuccess, "success", strings.Join(resultIDs, ","), message, true)
}

func (t *RequestTracker) terminal(version int, kind NotificationKind, tag, detail, message string, highlight bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if version != t.version {
		// Stale result from a superseded request.
		return
	}
	fp := fingerprint(tag, version, detail)
	if fp == t.lastFingerprint {
		// Same logical outcome as last time: no duplicate
		// notification; just drop the progress message if shown.
		if t.loadingShown {
			t.loadingShown = false
			t.notifier.Clear()
		}
		return
	}
	t.lastFingerprint = fp
	t.loadingShown = false
	t.notifier.Show(Notification{Kind: kind, Message: message})
	t.scheduleDismiss()
	if highlight {
		t.flashHighlight()
	}
}

// fingerprint summarizes a terminal outcome for novelty comparison.
func fingerprint(tag string, version int, detail string) string {
	if detail == "" {
		detail = "none"
	}
	return fmt.Sprintf("%s:%d:%s", tag, version, detail)
}

// stopTimers cancels pending auto-dismiss and highlight timers so a
// stale timer never clears a newer notification. Callers hold t.mu.
func (t *RequestTracker) stopTimers() {
	if t.dismissTimer != nil {
		t.dismissTimer.Stop()
		t.dismissTimer = nil
	}
	if t.highlightTimer != nil {
		t.highlightTimer.Stop()
		t.highlightTimer = nil
	}
}

func (t *RequestTracker) scheduleDismiss() {
	if t.dismissTimer != nil {
		t.dismissTimer.Stop()
	}
	var timer *time.Timer
	timer = t.after(t.dismissAfter, func() {
		t.mu.Lock()
		if t.dismissTimer != timer {
			t.mu.Unlock()
			return
		}
		t.dismissTimer = nil
		t.mu.Unlock()
		t.notifier.Clear()
	})
	t.dismissTimer = timer
}

func (t *RequestTracker) flashHighlight() {
	t.highlight = true
	if t.highlightTimer != nil {
		t.highlightTimer.Stop()
	}
	var timer *time.Timer
	timer = t.after(t.highlightAfter, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.highlightTimer != timer {
			return
		}
		t.highlightTimer = nil
		t.highlight = false
	})
	t.highlightTimer = timer
}

// Banner is a Notifier that holds the most recent notification for
// read-only polling by UI surfaces.
type Banner struct {
	mu      sync.Mutex
	current *Notification
}

func NewBanner() *Banner {
	return &Banner{}
}

func (b *Banner) Show(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = &n
}

func (b *Banner) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
}

// Current returns the displayed notification, if any.
func (b *Banner) Current() (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Notification{}, false
	}
	return *b.current, true
}
