// Package source polls the upstream activity endpoint and holds the latest snapshot.
package source

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"painel-pcm-backend/internal/clock"
	"painel-pcm-backend/internal/diff"
	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/observability"
)

// UserMessage is the only error text shown to dashboard users.
const UserMessage = "Não foi possível carregar os dados."

// HighlightWindow is how long a changed record stays highlighted.
const HighlightWindow = 2 * time.Second

// ErrSuperseded is returned by Refetch when a newer fetch replaced it.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// Listener observes every accepted snapshot. prev is the snapshot it replaced.
type Listener func(prev, next model.Snapshot, changed []string)

// State is a point-in-time copy of the source.
type State struct {
	Snapshot     model.Snapshot
	Loading      bool
	ErrorMessage string
	ErrorDetail  string
	LastAttempt  time.Time
	Changed      []string
}

// Service keeps the latest snapshot of the upstream endpoint. At most one fetch
// is current; starting a new one cancels the previous, whose result is dropped.
type Service struct {
	fetcher  Fetcher
	clock    clock.Clock
	interval time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	listeners  []Listener

	notifyMu    sync.Mutex
	notifiedGen uint64
	highlights  *cache.Cache
}

// NewService creates a source polling every interval.
func NewService(fetcher Fetcher, interval time.Duration, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		fetcher:    fetcher,
		clock:      clk,
		interval:   interval,
		highlights: cache.New(HighlightWindow, 10*time.Second),
	}
}

// OnSnapshot registers a listener. Listeners run synchronously, in snapshot order.
func (s *Service) OnSnapshot(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Seed installs a previously persisted snapshot when none has been fetched yet.
func (s *Service) Seed(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Snapshot.ID != "" {
		return
	}
	s.state.Snapshot = snap
}

// State returns a copy of the current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Changed = append([]string(nil), s.state.Changed...)
	return st
}

// Snapshot returns the current snapshot. Its records must not be modified.
func (s *Service) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot
}

// Highlighted returns the keys changed by the last fetch that are still inside
// the highlight window.
func (s *Service) Highlighted() []string {
	items := s.highlights.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Refetch fetches the endpoint now, superseding any fetch in flight. It returns
// ErrSuperseded when a newer fetch started before this one finished; in that
// case nothing about the state changes.
func (s *Service) Refetch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.state.Loading = true
	s.state.LastAttempt = s.clock.Now()
	s.mu.Unlock()

	started := time.Now()
	result, err := s.fetcher.Fetch(ctx)
	elapsed := time.Since(started)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		observability.RecordFetch(observability.OutcomeSuperseded, elapsed)
		return ErrSuperseded
	}
	s.cancel = nil
	s.state.Loading = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancelled by the caller rather than by failure.
			s.mu.Unlock()
			return err
		}
		s.state.ErrorMessage = UserMessage
		s.state.ErrorDetail = err.Error()
		s.mu.Unlock()
		observability.RecordFetch(observability.OutcomeError, elapsed)
		log.Printf("Error fetching activities: %v. Keeping last snapshot.", err)
		return err
	}

	prev := s.state.Snapshot
	next := model.Snapshot{
		ID:              uuid.NewString(),
		FetchedAt:       s.clock.Now(),
		SourceUpdatedAt: result.SourceUpdatedAt,
		Records:         result.Records,
	}
	changed := diff.Changed(prev.Records, next.Records)

	s.state.Snapshot = next
	s.state.ErrorMessage = ""
	s.state.ErrorDetail = ""
	s.state.Changed = changed
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.highlights.Flush()
	for _, key := range changed {
		s.highlights.SetDefault(key, next.ID)
	}
	observability.RecordFetch(observability.OutcomeSuccess, elapsed)
	observability.RecordSnapshot(next.FetchedAt, len(next.Records), len(changed))
	log.Printf("Fetched %d activities, %d changed", len(next.Records), len(changed))

	s.notify(gen, prev, next, changed, listeners)
	return nil
}

// notify runs listeners unless a newer snapshot was already announced.
func (s *Service) notify(gen uint64, prev, next model.Snapshot, changed []string, listeners []Listener) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if gen <= s.notifiedGen {
		return
	}
	s.notifiedGen = gen
	for _, l := range listeners {
		l(prev, next, changed)
	}
}

// Run fetches immediately and then on every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Println("Starting activity source...")

	s.refetchLogged(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Activity source shutting down.")
			return
		case <-timer.C:
			s.refetchLogged(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Service) refetchLogged(ctx context.Context) {
	if err := s.Refetch(ctx); errors.Is(err, ErrSuperseded) {
		log.Println("Scheduled fetch superseded by a manual refresh.")
	}
}
