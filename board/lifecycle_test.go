package board

import (
	"testing"
	"time"
)

// recordingNotifier captures every Show/Clear in order.
type recordingNotifier struct {
	shown   []Notification
	clears  int
	current *Notification
}

func (n *recordingNotifier) Show(notification Notification) {
	n.shown = append(n.shown, notification)
	n.current = &notification
}

func (n *recordingNotifier) Clear() {
	n.clears++
	n.current = nil
}

func (n *recordingNotifier) countKind(kind NotificationKind) int {
	count := 0
	for _, s := range n.shown {
		if s.Kind == kind {
			count++
		}
	}
	return count
}

// fakeClock collects timer callbacks for manual firing instead of
// letting them run on the wall clock.
type fakeClock struct {
	pending []func()
}

func (f *fakeClock) after(d time.Duration, fn func()) *time.Timer {
	f.pending = append(f.pending, fn)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return timer
}

func (f *fakeClock) fireAll() {
	pending := f.pending
	f.pending = nil
	for _, fn := range pending {
		fn()
	}
}

func newTestTracker() (*RequestTracker, *recordingNotifier, *fakeClock) {
	notifier := &recordingNotifier{}
	clock := &fakeClock{}
	tracker := NewRequestTracker(notifier)
	tracker.after = clock.after
	return tracker, notifier, clock
}

func TestLoadingIsIdempotent(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing board")
	if v2 := tracker.Loading("analyzing board"); v2 != v {
		t.Fatalf("version changed across re-entrant loading: %d vs %d", v, v2)
	}

	if got := notifier.countKind(NotifyProgress); got != 1 {
		t.Fatalf("expected 1 progress notification, got %d", got)
	}
	if notifier.current == nil || !notifier.current.Sticky {
		t.Fatalf("progress notification must be sticky: %#v", notifier.current)
	}
}

func TestDuplicateSuccessSuppressed(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Succeed(v, "3 proposals generated", []string{"p1", "p2", "p3"})

	v = tracker.Loading("analyzing")
	tracker.Succeed(v, "3 proposals generated", []string{"p1", "p2", "p3"})

	if got := notifier.countKind(NotifySuccess); got != 1 {
		t.Fatalf("same result set must notify once, got %d", got)
	}
}

func TestChangedResultSetNotifiesAgain(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Succeed(v, "2 proposals generated", []string{"p1", "p2"})

	v = tracker.Loading("analyzing")
	tracker.Succeed(v, "3 proposals generated", []string{"p1", "p2", "p3"})

	if got := notifier.countKind(NotifySuccess); got != 2 {
		t.Fatalf("changed result set must notify again, got %d", got)
	}
}

func TestResetStartsFreshLifecycle(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Succeed(v, "done", []string{"p1"})

	tracker.Reset()
	if notifier.current != nil {
		t.Fatal("reset must clear the displayed notification")
	}

	// Same ids, but a new version: the fingerprint differs, so the
	// notification shows again.
	v = tracker.Loading("analyzing")
	tracker.Succeed(v, "done", []string{"p1"})
	if got := notifier.countKind(NotifySuccess); got != 2 {
		t.Fatalf("post-reset success must notify, got %d", got)
	}
}

func TestStaleResultIgnored(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Reset() // input changed while in flight

	tracker.Succeed(v, "late", []string{"p1"})
	if got := notifier.countKind(NotifySuccess); got != 0 {
		t.Fatalf("stale result must be ignored, got %d notifications", got)
	}
	tracker.Fail(v, "late failure")
	if got := notifier.countKind(NotifyError); got != 0 {
		t.Fatalf("stale failure must be ignored, got %d notifications", got)
	}
}

func TestDuplicateErrorSuppressed(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Fail(v, "analysis failed")
	v = tracker.Loading("analyzing")
	tracker.Fail(v, "analysis failed")

	if got := notifier.countKind(NotifyError); got != 1 {
		t.Fatalf("identical failure must notify once, got %d", got)
	}
	// The second failure still tears down the progress notification.
	if notifier.current != nil {
		t.Fatalf("suppressed outcome left a notification up: %#v", notifier.current)
	}
}

func TestEmptyResultUsesNoticeFingerprint(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Empty(v, "no proposals for this board")
	v = tracker.Loading("analyzing")
	tracker.Empty(v, "no proposals for this board")

	if got := notifier.countKind(NotifyNotice); got != 1 {
		t.Fatalf("identical empty result must notify once, got %d", got)
	}
}

func TestErrorAndEmptyFingerprintsAreDistinct(t *testing.T) {
	tracker, notifier, _ := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Fail(v, "failed")
	tracker.Empty(v, "nothing found")

	if notifier.countKind(NotifyError) != 1 || notifier.countKind(NotifyNotice) != 1 {
		t.Fatalf("distinct outcomes both notify: %#v", notifier.shown)
	}
}

func TestAutoDismissClearsNotification(t *testing.T) {
	tracker, notifier, clock := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Fail(v, "failed")
	if notifier.current == nil {
		t.Fatal("error notification should be displayed")
	}

	clock.fireAll()
	if notifier.current != nil {
		t.Fatalf("auto-dismiss did not clear: %#v", notifier.current)
	}
}

func TestSupersededDismissTimerDoesNotClearNewerNotification(t *testing.T) {
	tracker, notifier, clock := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Fail(v, "failed")
	stale := clock.pending
	clock.pending = nil

	tracker.Reset()
	v = tracker.Loading("analyzing")
	tracker.Succeed(v, "done", []string{"p1"})

	for _, fn := range stale {
		fn()
	}
	if notifier.current == nil || notifier.current.Kind != NotifySuccess {
		t.Fatalf("stale timer cleared the newer notification: %#v", notifier.current)
	}
}

func TestHighlightFlagTransient(t *testing.T) {
	tracker, _, clock := newTestTracker()

	v := tracker.Loading("analyzing")
	tracker.Succeed(v, "done", []string{"p1"})
	if !tracker.Highlighted() {
		t.Fatal("fresh success should raise the highlight flag")
	}

	clock.fireAll()
	if tracker.Highlighted() {
		t.Fatal("highlight flag should auto-clear")
	}
}

func TestVersionAdvancesOnReset(t *testing.T) {
	tracker, _, _ := newTestTracker()
	v0 := tracker.Version()
	tracker.Reset()
	tracker.Reset()
	if got := tracker.Version(); got != v0+2 {
		t.Fatalf("version = %d, want %d", got, v0+2)
	}
}

func TestBannerHoldsLatestNotification(t *testing.T) {
	banner := NewBanner()
	if _, ok := banner.Current(); ok {
		t.Fatal("new banner should be empty")
	}

	banner.Show(Notification{Kind: NotifyError, Message: "boom"})
	got, ok := banner.Current()
	if !ok || got.Message != "boom" {
		t.Fatalf("unexpected banner state: %#v ok=%v", got, ok)
	}

	banner.Clear()
	if _, ok := banner.Current(); ok {
		t.Fatal("cleared banner should be empty")
	}
}
