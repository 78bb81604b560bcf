// Package insights keeps a cached, independently refreshable market snapshot
// per narrative language.
package insights

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"studio/internal/domain"
	"studio/internal/infra"
)

const fetchTimeout = 90 * time.Second

// Source produces a fresh market snapshot.
type Source interface {
	MarketInsights(ctx context.Context, lang language.Tag) (domain.MarketInsight, error)
}

// Snapshot is what callers display. Insight is nil until the first successful
// fetch; Pending is true while a fetch is in flight.
type Snapshot struct {
	Language      string                `json:"language"`
	Insight       *domain.MarketInsight `json:"insight,omitempty"`
	SelectedEvent string                `json:"selectedEvent,omitempty"`
	Pending       bool                  `json:"pending"`
	Stale         bool                  `json:"stale"`
}

type entry struct {
	last      *domain.MarketInsight
	selected  string
	pending   int
	activated bool
}

// Fetcher refreshes snapshots through Source. Fresh snapshots live in a
// go-cache with the configured TTL; the last good one is kept past expiry so
// failures never blank the display.
type Fetcher struct {
	source Source
	fresh  *cache.Cache
	group  singleflight.Group
	logger infra.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewFetcher builds a fetcher whose snapshots are fresh for ttl.
func NewFetcher(source Source, ttl time.Duration, logger infra.Logger) *Fetcher {
	return &Fetcher{
		source:  source,
		fresh:   cache.New(ttl, ttl*2),
		logger:  infra.Component(logger, "insights"),
		entries: map[string]*entry{},
	}
}

// Activate fetches on first use and after the snapshot expired. Otherwise it
// returns the current snapshot without a call.
func (f *Fetcher) Activate(ctx context.Context, lang language.Tag) Snapshot {
	key := lang.String()
	f.mu.RLock()
	e := f.entries[key]
	needed := e == nil || !e.activated
	if e != nil && e.pending == 0 {
		if _, ok := f.fresh.Get(key); !ok {
			needed = true
		}
	}
	f.mu.RUnlock()
	if !needed {
		return f.Snapshot(lang)
	}
	return f.Refresh(ctx, lang)
}

// ActivateInBackground is Activate without waiting: the returned snapshot
// shows Pending when a fetch was started.
func (f *Fetcher) ActivateInBackground(lang language.Tag) Snapshot {
	key := lang.String()
	f.mu.Lock()
	e := f.entryLocked(key)
	_, fresh := f.fresh.Get(key)
	start := e.pending == 0 && (!e.activated || !fresh)
	if start {
		// Counted here so the snapshot returned below already shows pending.
		e.pending++
		e.activated = true
	}
	f.mu.Unlock()

	if start {
		go func() {
			defer f.donePending(key)
			f.fetch(context.Background(), lang)
		}()
	}
	return f.Snapshot(lang)
}

// Refresh fetches a new snapshot. Concurrent refreshes for one language share
// a single backend call. Failures are logged and leave the prior snapshot.
func (f *Fetcher) Refresh(ctx context.Context, lang language.Tag) Snapshot {
	key := lang.String()
	f.mu.Lock()
	e := f.entryLocked(key)
	e.pending++
	e.activated = true
	f.mu.Unlock()

	f.fetch(ctx, lang)
	f.donePending(key)
	return f.Snapshot(lang)
}

// Snapshot returns the current state without fetching.
func (f *Fetcher) Snapshot(lang language.Tag) Snapshot {
	key := lang.String()
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := Snapshot{Language: key}
	e := f.entries[key]
	if e == nil {
		return snap
	}
	snap.Pending = e.pending > 0
	snap.SelectedEvent = e.selected
	if e.last != nil {
		insight := *e.last
		snap.Insight = &insight
		_, fresh := f.fresh.Get(key)
		snap.Stale = !fresh
	}
	return snap
}

// SelectEvent sets the drill-down event. The name must be in the current snapshot.
func (f *Fetcher) SelectEvent(lang language.Tag, name string) (Snapshot, error) {
	key := lang.String()
	f.mu.Lock()
	e := f.entries[key]
	if e == nil || e.last == nil {
		f.mu.Unlock()
		return Snapshot{}, domain.ErrNotFound
	}
	if _, ok := e.last.Event(name); !ok {
		f.mu.Unlock()
		return Snapshot{}, domain.ErrNotFound
	}
	e.selected = name
	f.mu.Unlock()
	return f.Snapshot(lang), nil
}

func (f *Fetcher) fetch(ctx context.Context, lang language.Tag) {
	key := lang.String()
	// The shared call must not die with whichever caller started it.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	defer cancel()

	_, err, _ := f.group.Do(key, func() (interface{}, error) {
		insight, err := f.source.MarketInsights(callCtx, lang)
		if err != nil {
			return nil, err
		}
		f.store(key, insight)
		return nil, nil
	})
	if err != nil {
		f.logger.Warn().Err(err).Str("language", key).Msg("market insight refresh failed, keeping previous snapshot")
	}
}

func (f *Fetcher) store(key string, insight domain.MarketInsight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entryLocked(key)
	e.last = &insight
	f.fresh.SetDefault(key, insight)
	if _, ok := insight.Event(e.selected); !ok || e.selected == "" {
		e.selected = ""
		if len(insight.Events) > 0 {
			e.selected = insight.Events[0].Name
		}
	}
}

func (f *Fetcher) donePending(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e := f.entries[key]; e != nil && e.pending > 0 {
		e.pending--
	}
}

func (f *Fetcher) entryLocked(key string) *entry {
	e := f.entries[key]
	if e == nil {
		e = &entry{}
		f.entries[key] = e
	}
	return e
}
