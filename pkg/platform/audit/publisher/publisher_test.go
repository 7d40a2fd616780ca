package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docdesk/pkg/domain"
	audit "docdesk/pkg/platform/audit"
	"docdesk/pkg/platform/audit/store/memory"
	"docdesk/pkg/requestcontext"
)

type PublisherSuite struct {
	suite.Suite
	store    *memory.InMemoryStore
	reviewer domain.UserID
	seeker   domain.UserID
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.reviewer = domain.UserID(uuid.New())
	s.seeker = domain.UserID(uuid.New())
}

func (s *PublisherSuite) decision(appID string) audit.Event {
	return audit.Event{
		UserID:   s.reviewer,
		Role:     domain.RoleReviewer,
		Subject:  appID,
		Action:   string(audit.EventApplicationDecision),
		Decision: "accepted",
	}
}

func (s *PublisherSuite) TestSyncEmitIsVisibleImmediately() {
	pub := NewPublisher(s.store)
	defer pub.Close()

	s.Require().NoError(pub.Emit(context.Background(), s.decision("app-1")))

	events, err := pub.History(context.Background(), "app-1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("accepted", events[0].Decision)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.False(events[0].Timestamp.IsZero())
}

func (s *PublisherSuite) TestHistoryIsKeptPerSubjectInOrder() {
	pub := NewPublisher(s.store)
	defer pub.Close()
	ctx := context.Background()

	s.Require().NoError(pub.Emit(ctx, audit.Event{UserID: s.seeker, Subject: "app-1", Action: string(audit.EventApplicationCreated)}))
	s.Require().NoError(pub.Emit(ctx, audit.Event{UserID: s.seeker, Subject: "app-1", Action: string(audit.EventApplicationUpdated)}))
	s.Require().NoError(pub.Emit(ctx, s.decision("app-2")))
	s.Require().NoError(pub.Emit(ctx, s.decision("app-1")))

	trail, err := pub.History(ctx, "app-1")
	s.Require().NoError(err)
	s.Require().Len(trail, 3)
	s.Equal(string(audit.EventApplicationCreated), trail[0].Action)
	s.Equal(string(audit.EventApplicationUpdated), trail[1].Action)
	s.Equal(audit.CategoryOperations, trail[1].Category)
	s.Equal(s.reviewer, trail[2].UserID)

	other, err := pub.History(ctx, "app-2")
	s.Require().NoError(err)
	s.Len(other, 1)
}

func (s *PublisherSuite) TestExplicitTimestampIsKept() {
	pub := NewPublisher(s.store)
	defer pub.Close()

	decidedAt := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	event := s.decision("app-1")
	event.Timestamp = decidedAt
	s.Require().NoError(pub.Emit(context.Background(), event))

	events, err := pub.History(context.Background(), "app-1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(decidedAt, events[0].Timestamp)
}

func (s *PublisherSuite) TestDeniedAccessIsEnrichedFromRequest() {
	pub := NewPublisher(s.store)
	defer pub.Close()

	ctx := requestcontext.WithRequestID(context.Background(), "req-7f3a")
	ctx = requestcontext.WithClientMetadata(ctx, "198.51.100.23",
		"Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0")

	s.Require().NoError(pub.Emit(ctx, audit.Event{
		UserID:  s.seeker,
		Role:    domain.RoleSeeker,
		Subject: "app-9",
		Action:  string(audit.EventAccessDenied),
		Reason:  "role_mismatch",
	}))

	events, err := pub.History(context.Background(), "app-9")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	got := events[0]
	s.Equal(audit.CategorySecurity, got.Category)
	s.Equal("role_mismatch", got.Reason)
	s.Equal("req-7f3a", got.RequestID)
	s.Equal("198.51.100.23", got.ClientIP)
	s.Contains(got.Device, "Firefox")
}

func (s *PublisherSuite) TestAsyncCloseDrainsEveryDecision() {
	pub := NewPublisher(s.store, WithAsyncBuffer(32))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(pub.Emit(context.Background(), s.decision("app-1")))
		}()
	}
	wg.Wait()
	pub.Close()

	events, err := s.store.ListBySubject(context.Background(), "app-1")
	s.Require().NoError(err)
	s.Len(events, 20)
}

func (s *PublisherSuite) TestAsyncFullBufferRejectsWithoutBlocking() {
	store := newGatedStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	ctx := context.Background()
	s.Require().NoError(pub.Emit(ctx, s.decision("first")))
	<-store.entered // the drainer now holds "first" inside Append

	s.Require().NoError(pub.Emit(ctx, s.decision("second")))
	err := pub.Emit(ctx, s.decision("third"))
	s.ErrorIs(err, ErrBufferFull)

	close(store.release)
	pub.Close()
	s.Len(store.subjects(), 2)
}

func (s *PublisherSuite) TestAsyncCancelledContextIsReported() {
	pub := NewPublisher(s.store, WithAsyncBuffer(4))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Emit(ctx, s.decision("app-1"))
	s.ErrorIs(err, context.Canceled)
}

func (s *PublisherSuite) TestEmitAfterCloseFallsBackToSyncAppend() {
	pub := NewPublisher(s.store, WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	s.Require().NoError(pub.Emit(context.Background(), s.decision("late")))
	events, err := s.store.ListBySubject(context.Background(), "late")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PublisherSuite) TestSyncStoreErrorIsReturned() {
	boom := errors.New("audit store offline")
	pub := NewPublisher(failingStore{err: boom})
	defer pub.Close()

	s.ErrorIs(pub.Emit(context.Background(), s.decision("app-1")), boom)
}

// gatedStore blocks the first Append until release is closed.
type gatedStore struct {
	mu      sync.Mutex
	events  []audit.Event
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) Append(_ context.Context, event audit.Event) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event)
	return nil
}

func (g *gatedStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]audit.Event{}, g.events...), nil
}

func (g *gatedStore) subjects() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.events))
	for _, e := range g.events {
		out = append(out, e.Subject)
	}
	return out
}

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, audit.Event) error { return f.err }

func (f failingStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, f.err
}
