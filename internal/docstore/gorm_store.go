package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"daily-tracker/internal/logging"
	"daily-tracker/internal/model"
	"daily-tracker/internal/repository"
)

// GormStore keeps documents in the gorm database and pushes snapshots to
// watchers in the same process after every write.
type GormStore struct {
	repo *repository.DocumentRepository
	hub  *hub
	log  logging.Logger
}

func NewGormStore(repo *repository.DocumentRepository, log logging.Logger) *GormStore {
	return &GormStore{repo: repo, hub: newHub(), log: log}
}

func (s *GormStore) Watch(ctx context.Context, path string) (Subscription, error) {
	p, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "watch", "path", p.raw)
	return s.hub.watch(ctx, p.collection, func(ctx context.Context) (Snapshot, error) {
		if p.isDoc() {
			return s.loadDocument(ctx, p)
		}
		return s.loadCollection(ctx, p)
	})
}

func (s *GormStore) loadCollection(ctx context.Context, p parsedPath) (Snapshot, error) {
	rows, err := s.repo.ListByCollection(ctx, p.collection)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Path: p.raw, Docs: make([]Document, 0, len(rows))}
	for _, row := range rows {
		doc, err := toDocument(row)
		if err != nil {
			s.log.Warn(ctx, "skip undecodable document", "collection", row.Collection, "id", row.DocID, "err", err)
			continue
		}
		snap.Docs = append(snap.Docs, doc)
	}
	return snap, nil
}

func (s *GormStore) loadDocument(ctx context.Context, p parsedPath) (Snapshot, error) {
	doc, err := s.get(ctx, p)
	switch {
	case err == nil:
		return Snapshot{Path: p.raw, Docs: []Document{doc}}, nil
	case errors.Is(err, ErrNotFound):
		return Snapshot{Path: p.raw}, nil
	default:
		return Snapshot{}, err
	}
}

func (s *GormStore) Get(ctx context.Context, path string) (Document, error) {
	p, err := docPath(path)
	if err != nil {
		return Document{}, err
	}
	return s.get(ctx, p)
}

func (s *GormStore) get(ctx context.Context, p parsedPath) (Document, error) {
	row, err := s.repo.Find(ctx, p.collection, p.docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return toDocument(*row)
}

func (s *GormStore) Create(ctx context.Context, path string, data Data) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	err = s.repo.Insert(ctx, &model.Document{Collection: p.collection, DocID: p.docID, Data: string(raw)})
	if errors.Is(err, repository.ErrDocumentExists) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	s.hub.notify(p.collection)
	return nil
}

func (s *GormStore) Merge(ctx context.Context, path string, data Data) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	err = s.repo.Upsert(ctx, p.collection, p.docID, func(current *string) (string, error) {
		var base []byte
		if current != nil {
			base = []byte(*current)
		}
		merged, err := mergeData(base, data)
		if err != nil {
			return "", err
		}
		return string(merged), nil
	})
	if err != nil {
		return err
	}
	s.hub.notify(p.collection)
	return nil
}

func (s *GormStore) Update(ctx context.Context, path string, data Data) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	err = s.repo.Update(ctx, p.collection, p.docID, func(current string) (string, error) {
		merged, err := mergeData([]byte(current), data)
		if err != nil {
			return "", err
		}
		return string(merged), nil
	})
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.hub.notify(p.collection)
	return nil
}

func (s *GormStore) Add(ctx context.Context, path string, data Data) (string, error) {
	p, err := collectionPath(path)
	if err != nil {
		return "", err
	}
	raw, err := encode(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.repo.Insert(ctx, &model.Document{Collection: p.collection, DocID: id, Data: string(raw)}); err != nil {
		return "", err
	}
	s.hub.notify(p.collection)
	return id, nil
}

func (s *GormStore) Delete(ctx context.Context, path string) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.collection, p.docID); err != nil {
		return err
	}
	s.hub.notify(p.collection)
	return nil
}

// Close ends every open subscription. The database itself is owned by the caller.
func (s *GormStore) Close() error {
	s.hub.close()
	return nil
}

func toDocument(row model.Document) (Document, error) {
	data, err := decode([]byte(row.Data))
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:   row.DocID,
		Path: Join(row.Collection, row.DocID),
		Data: data,
	}, nil
}
