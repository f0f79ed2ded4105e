package service

import (
	"context"
	"errors"
	"sync"

	"daily-tracker/internal/docstore"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/model"
	"daily-tracker/internal/realtime"
)

// SettingsStore keeps the profile document of one user in sync. A missing
// document is created with defaults once; saves are merged field by field.
type SettingsStore struct {
	store   docstore.Store
	paths   Paths
	log     logging.Logger
	channel *realtime.Channel[model.Settings]

	mu        sync.Mutex
	ctx       context.Context
	path      string
	current   model.Settings
	created   bool
	listeners map[int]func(model.Settings)
	nextID    int
	stopSync  func()
}

func NewSettingsStore(store docstore.Store, paths Paths, log logging.Logger) *SettingsStore {
	normalize := func(doc docstore.Document) (model.Settings, error) {
		return model.SettingsFromData(doc.Data), nil
	}
	return &SettingsStore{
		store:     store,
		paths:     paths,
		log:       log,
		channel:   realtime.NewChannel[model.Settings](store, normalize, nil, log),
		current:   model.DefaultSettings(),
		listeners: make(map[int]func(model.Settings)),
	}
}

// Load starts syncing the settings of uid. ctx bounds the subscription.
func (s *SettingsStore) Load(ctx context.Context, uid string) error {
	s.Close()

	path := s.paths.Settings(uid)
	s.mu.Lock()
	s.ctx = ctx
	s.path = path
	s.current = model.DefaultSettings()
	s.created = false
	s.mu.Unlock()

	stop := s.channel.OnChange(func(items []model.Settings) { s.onSnapshot(path, items) })
	if err := s.channel.Open(ctx, path); err != nil {
		stop()
		return err
	}

	s.mu.Lock()
	s.stopSync = stop
	s.mu.Unlock()
	return nil
}

func (s *SettingsStore) onSnapshot(path string, items []model.Settings) {
	s.mu.Lock()
	if path != s.path {
		s.mu.Unlock()
		return
	}
	if len(items) == 0 {
		createNow := !s.created
		s.created = true
		ctx := s.ctx
		s.mu.Unlock()
		if createNow {
			go s.createDefaults(ctx, path)
		}
		return
	}
	s.current = items[0]
	s.created = true
	s.mu.Unlock()

	s.publish(items[0])
}

func (s *SettingsStore) createDefaults(ctx context.Context, path string) {
	err := s.store.Create(ctx, path, model.DefaultSettings().Data())
	switch {
	case err == nil:
		s.log.Info(ctx, "default settings created", "path", path)
	case errors.Is(err, docstore.ErrAlreadyExists):
	default:
		s.log.Error(ctx, "create default settings", "path", path, "err", err)
	}
}

func (s *SettingsStore) Current() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *SettingsStore) OnChange(fn func(model.Settings)) (cancel func()) {
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

// Save shows the patch locally right away and merges the present fields into
// the stored document. A failed write is not rolled back.
func (s *SettingsStore) Save(ctx context.Context, patch model.SettingsPatch) error {
	if patch.Empty() {
		return nil
	}

	s.mu.Lock()
	path := s.path
	if path == "" {
		s.mu.Unlock()
		return errors.New("save settings: not loaded")
	}
	s.current = patch.Apply(s.current)
	updated := s.current
	s.mu.Unlock()

	s.publish(updated)

	if err := s.store.Merge(ctx, path, patch.Data()); err != nil {
		s.log.Error(ctx, "save settings", "path", path, "err", err)
		return writeFailed("save settings", err)
	}
	return nil
}

func (s *SettingsStore) publish(settings model.Settings) {
	s.mu.Lock()
	fns := make([]func(model.Settings), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(settings)
	}
}

// Close stops syncing. Safe to call repeatedly.
func (s *SettingsStore) Close() {
	s.channel.Close()

	s.mu.Lock()
	stop := s.stopSync
	s.stopSync = nil
	s.path = ""
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}
