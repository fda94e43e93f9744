package payments

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"scrimhub/internal/checkout"
	"scrimhub/internal/common/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type statusReply struct {
	status  StatusValue
	message string
	err     error
}

type fakeBackend struct {
	mu sync.Mutex

	initiateResp  *InitiateResponse
	initiateErr   error
	initiateCalls []PaymentRequest

	replies     []statusReply
	statusCalls []string

	pending    []PaymentRecord
	pendingErr error
}

func (b *fakeBackend) Initiate(_ context.Context, req *PaymentRequest) (*InitiateResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initiateCalls = append(b.initiateCalls, *req)
	if b.initiateErr != nil {
		return nil, b.initiateErr
	}
	return b.initiateResp, nil
}

// Status replays replies in order and repeats the last one.
func (b *fakeBackend) Status(_ context.Context, id string) (*PaymentStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls = append(b.statusCalls, id)
	if len(b.replies) == 0 {
		return &PaymentStatus{Success: true, MerchantOrderID: id, Status: StatusPending}, nil
	}
	r := b.replies[0]
	if len(b.replies) > 1 {
		b.replies = b.replies[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &PaymentStatus{Success: true, MerchantOrderID: id, Status: r.status, Message: r.message, RegistrationID: 42}, nil
}

func (b *fakeBackend) Pending(context.Context) ([]PaymentRecord, error) {
	return b.pending, b.pendingErr
}

type fakeCheckout struct {
	available bool
	result    checkout.Result
	err       error
	onOpen    func()
	opened    []string
}

func (c *fakeCheckout) Available() bool { return c.available }

func (c *fakeCheckout) Open(_ context.Context, tokenURL string) (checkout.Result, error) {
	c.opened = append(c.opened, tokenURL)
	if c.onOpen != nil {
		c.onOpen()
	}
	return c.result, c.err
}

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*PaymentSession
	last     string
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*PaymentSession)}
}

func (s *fakeStore) Save(_ context.Context, session *PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *session
	s.sessions[session.MerchantOrderID] = &cp
	s.last = session.MerchantOrderID
	return nil
}

func (s *fakeStore) LastOrderID(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == "" {
		return "", ErrSessionNotFound
	}
	return s.last, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *fakeStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	if s.last == id {
		s.last = ""
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// waitRecorder replaces the poller's sleep.
type waitRecorder struct {
	waits []time.Duration
	err   error
}

func (w *waitRecorder) wait(_ context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return w.err
}

func newTestPoller(checker StatusChecker, cfg PollerConfig) (*Poller, *waitRecorder) {
	p := NewPoller(checker, cfg, testLogger())
	rec := &waitRecorder{}
	p.wait = rec.wait
	return p, rec
}
