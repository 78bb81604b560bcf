package insights

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/language"

	"studio/internal/domain"
	"studio/internal/infra"
)

type fakeSource struct {
	calls  atomic.Int32
	mu     sync.Mutex
	next   []result
	gate   chan struct{}
	called chan struct{}
}

type result struct {
	insight domain.MarketInsight
	err     error
}

func (f *fakeSource) MarketInsights(ctx context.Context, lang language.Tag) (domain.MarketInsight, error) {
	f.calls.Add(1)
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.next[0]
	if len(f.next) > 1 {
		f.next = f.next[1:]
	}
	return r.insight, r.err
}

func insightWith(events ...string) domain.MarketInsight {
	in := domain.MarketInsight{Advice: "advice"}
	for _, name := range events {
		in.Events = append(in.Events, domain.MarketEvent{Name: name, Keywords: []string{"k"}})
	}
	return in
}

func TestRefreshReplacesAndAutoSelects(t *testing.T) {
	src := &fakeSource{next: []result{
		{insight: insightWith("Valentine's Day", "Spring Festival")},
		{insight: insightWith("Easter", "Spring Festival")},
		{insight: insightWith("Mother's Day")},
	}}
	f := NewFetcher(src, time.Hour, infra.NopLogger())

	snap := f.Refresh(context.Background(), language.English)
	if snap.Insight == nil || snap.SelectedEvent != "Valentine's Day" || snap.Pending {
		t.Fatalf("first snapshot = %+v", snap)
	}

	if _, err := f.SelectEvent(language.English, "Spring Festival"); err != nil {
		t.Fatalf("SelectEvent: %v", err)
	}
	snap = f.Refresh(context.Background(), language.English)
	if snap.Insight.Events[0].Name != "Easter" {
		t.Fatalf("snapshot not replaced: %+v", snap.Insight)
	}
	if snap.SelectedEvent != "Spring Festival" {
		t.Fatalf("valid selection lost: %q", snap.SelectedEvent)
	}

	snap = f.Refresh(context.Background(), language.English)
	if snap.SelectedEvent != "Mother's Day" {
		t.Fatalf("stale selection not replaced: %q", snap.SelectedEvent)
	}
}

func TestRefreshFailureKeepsPriorSnapshot(t *testing.T) {
	src := &fakeSource{next: []result{
		{insight: insightWith("Halloween")},
		{err: errors.New("quota")},
	}}
	f := NewFetcher(src, time.Hour, infra.NopLogger())
	f.Refresh(context.Background(), language.English)

	snap := f.Refresh(context.Background(), language.English)
	if snap.Insight == nil || snap.Insight.Events[0].Name != "Halloween" || snap.SelectedEvent != "Halloween" {
		t.Fatalf("snapshot after failure = %+v", snap)
	}
}

func TestPendingKeepsPriorData(t *testing.T) {
	src := &fakeSource{next: []result{{insight: insightWith("Halloween")}}}
	f := NewFetcher(src, time.Hour, infra.NopLogger())
	f.Refresh(context.Background(), language.English)

	src.gate = make(chan struct{})
	src.called = make(chan struct{}, 1)
	done := make(chan Snapshot)
	go func() { done <- f.Refresh(context.Background(), language.English) }()
	<-src.called

	snap := f.Snapshot(language.English)
	if !snap.Pending || snap.Insight == nil {
		t.Fatalf("pending snapshot = %+v", snap)
	}
	close(src.gate)
	if snap := <-done; snap.Pending {
		t.Fatal("pending must clear once the fetch returns")
	}
}

func TestConcurrentRefreshesShareOneCall(t *testing.T) {
	src := &fakeSource{next: []result{{insight: insightWith("Diwali")}}, gate: make(chan struct{}), called: make(chan struct{}, 8)}
	f := NewFetcher(src, time.Hour, infra.NopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Refresh(context.Background(), language.English)
		}()
	}
	<-src.called
	// Give the other callers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Fatalf("backend calls = %d, want 1", got)
	}
}

func TestActivateFetchesOncePerTTL(t *testing.T) {
	src := &fakeSource{next: []result{{insight: insightWith("Thanksgiving")}}}
	f := NewFetcher(src, 30*time.Millisecond, infra.NopLogger())

	f.Activate(context.Background(), language.English)
	f.Activate(context.Background(), language.English)
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}

	time.Sleep(60 * time.Millisecond)
	if snap := f.Snapshot(language.English); !snap.Stale || snap.Insight == nil {
		t.Fatalf("expired snapshot = %+v", snap)
	}
	f.Activate(context.Background(), language.English)
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("calls after expiry = %d, want 2", got)
	}

	// Languages are cached independently.
	f.Activate(context.Background(), language.Chinese)
	if got := src.calls.Load(); got != 3 {
		t.Fatalf("calls for a second language = %d, want 3", got)
	}
}

func TestActivateReturnsSettledSnapshot(t *testing.T) {
	src := &fakeSource{next: []result{{insight: insightWith("Black Friday")}}}
	f := NewFetcher(src, time.Hour, infra.NopLogger())

	snap := f.Activate(context.Background(), language.English)
	if snap.Pending || snap.Insight == nil || snap.Stale {
		t.Fatalf("Activate() = %+v, want settled fresh snapshot", snap)
	}
	if again := f.Activate(context.Background(), language.English); again.Pending {
		t.Fatalf("cached Activate() = %+v", again)
	}
}

func TestActivateInBackgroundReportsPending(t *testing.T) {
	src := &fakeSource{next: []result{{insight: insightWith("New Year")}}, gate: make(chan struct{})}
	f := NewFetcher(src, time.Hour, infra.NopLogger())

	snap := f.ActivateInBackground(language.English)
	if !snap.Pending || snap.Insight != nil {
		t.Fatalf("background snapshot = %+v", snap)
	}
	// A second activation does not start another fetch.
	f.ActivateInBackground(language.English)
	close(src.gate)

	deadline := time.Now().Add(2 * time.Second)
	for f.Snapshot(language.English).Pending {
		if time.Now().After(deadline) {
			t.Fatal("background fetch did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if snap := f.Snapshot(language.English); snap.SelectedEvent != "New Year" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSelectEventUnknown(t *testing.T) {
	f := NewFetcher(&fakeSource{next: []result{{insight: insightWith("A")}}}, time.Hour, infra.NopLogger())
	if _, err := f.SelectEvent(language.English, "A"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("before fetch: err = %v", err)
	}
	f.Refresh(context.Background(), language.English)
	if _, err := f.SelectEvent(language.English, "B"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown event: err = %v", err)
	}
}
