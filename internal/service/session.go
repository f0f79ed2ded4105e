package service

import (
	"context"
	"errors"
	"sync"

	"daily-tracker/internal/docstore"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/model"
	"daily-tracker/internal/realtime"
	"daily-tracker/internal/report"
)

// Session owns the three synced collections of one signed-in user and keeps
// the derived view current.
type Session struct {
	uid          string
	log          logging.Logger
	settings     *SettingsStore
	tasks        *realtime.Channel[model.Task]
	transactions *realtime.Channel[model.Transaction]
	gateway      *Gateway
	cancel       context.CancelFunc

	mu        sync.Mutex
	view      report.View
	listeners map[int]func(report.View)
	nextID    int
	stops     []func()
	closed    bool
	seen      map[string]bool
	synced    chan struct{}
}

// OpenSession subscribes to every collection of uid. The subscriptions live
// until Close or until ctx ends.
func OpenSession(ctx context.Context, store docstore.Store, paths Paths, uid string, log logging.Logger) (*Session, error) {
	if uid == "" {
		return nil, errors.New("open session: empty uid")
	}
	log = log.With("uid", uid)
	ctx, cancel := context.WithCancel(ctx)

	tasks := realtime.NewChannel(store, func(doc docstore.Document) (model.Task, error) {
		return model.TaskFromData(doc.ID, doc.Data)
	}, model.TaskLess, log)
	transactions := realtime.NewChannel(store, func(doc docstore.Document) (model.Transaction, error) {
		return model.TransactionFromData(doc.ID, doc.Data)
	}, model.TransactionLess, log)

	s := &Session{
		uid:          uid,
		log:          log,
		settings:     NewSettingsStore(store, paths, log),
		tasks:        tasks,
		transactions: transactions,
		gateway:      NewGateway(store, paths, uid, tasks, log),
		cancel:       cancel,
		view:         report.Build(model.DefaultSettings(), nil, nil),
		listeners:    make(map[int]func(report.View)),
		seen:         make(map[string]bool),
		synced:       make(chan struct{}),
	}

	s.stops = append(s.stops,
		s.settings.OnChange(func(settings model.Settings) {
			s.update("settings", func(v *report.View) { v.Settings = settings })
		}),
		tasks.OnChange(func(items []model.Task) {
			s.update("tasks", func(v *report.View) { v.Tasks = items })
		}),
		transactions.OnChange(func(items []model.Transaction) {
			s.update("transactions", func(v *report.View) { v.Transactions = items })
		}),
	)

	if err := s.settings.Load(ctx, uid); err != nil {
		s.Close()
		return nil, err
	}
	if err := tasks.Open(ctx, paths.Tasks(uid)); err != nil {
		s.Close()
		return nil, err
	}
	if err := transactions.Open(ctx, paths.Transactions(uid)); err != nil {
		s.Close()
		return nil, err
	}

	log.Info(ctx, "session opened")
	return s, nil
}

func (s *Session) update(source string, change func(v *report.View)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.seen[source] {
		s.seen[source] = true
		if source != "settings" && s.seen["tasks"] && s.seen["transactions"] {
			close(s.synced)
		}
	}
	next := s.view
	change(&next)
	s.view = report.Build(next.Settings, next.Tasks, next.Transactions)
	view := s.view
	fns := make([]func(report.View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func (s *Session) UserID() string { return s.uid }

// WaitSynced blocks until tasks and transactions have both delivered their
// first snapshot.
func (s *Session) WaitSynced(ctx context.Context) error {
	select {
	case <-s.synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Gateway() *Gateway { return s.gateway }

func (s *Session) Settings() *SettingsStore { return s.settings }

// View returns the latest derived view.
func (s *Session) View() report.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// OnChange registers fn for every recomputed view.
func (s *Session) OnChange(fn func(report.View)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close tears down every subscription. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	s.tasks.Close()
	s.transactions.Close()
	s.settings.Close()
	for _, stop := range stops {
		stop()
	}
	s.cancel()
	s.log.Info(context.Background(), "session closed")
}

// SessionManager keeps at most one session per owner key, e.g. a chat.
type SessionManager struct {
	ctx   context.Context
	store docstore.Store
	paths Paths
	log   logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager builds a manager whose sessions live at most as long as ctx.
func NewSessionManager(ctx context.Context, store docstore.Store, paths Paths, log logging.Logger) *SessionManager {
	return &SessionManager{
		ctx:      ctx,
		store:    store,
		paths:    paths,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session of key for uid. A session of another uid is
// closed before the new one subscribes.
func (m *SessionManager) Open(key, uid string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.sessions[key]; ok {
		if current.UserID() == uid {
			return current, nil
		}
		current.Close()
		delete(m.sessions, key)
	}

	session, err := OpenSession(m.ctx, m.store, m.paths, uid, m.log.With("owner", key))
	if err != nil {
		return nil, err
	}
	m.sessions[key] = session
	return session, nil
}

func (m *SessionManager) Get(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok
}

func (m *SessionManager) Close(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
