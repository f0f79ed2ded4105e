package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"daily-tracker/internal/docstore/migrations"
	"daily-tracker/internal/logging"
)

// notifyChannel carries the collection path of every write.
const notifyChannel = "documents_changed"

const listenRetryDelay = time.Second

// PostgresStore keeps documents in a JSONB table. Writes publish the
// collection through NOTIFY in the same transaction, so watchers in every
// process connected to the database receive snapshots.
type PostgresStore struct {
	pool  *pgxpool.Pool
	sqlDB *sql.DB
	hub   *hub
	log   logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPostgresStore connects, applies migrations and starts listening.
func NewPostgresStore(ctx context.Context, dsn string, log logging.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := &PostgresStore{
		pool:  pool,
		sqlDB: stdlib.OpenDBFromPool(pool),
		hub:   newHub(),
		log:   log,
	}

	if err := s.RunMigrations(ctx); err != nil {
		_ = s.sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.listen(listenCtx)

	return s, nil
}

func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.sqlDB, ".")
}

func (s *PostgresStore) listen(ctx context.Context) {
	defer s.wg.Done()

	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn(ctx, "document listener interrupted", "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	// Writes may have happened while the listener was down.
	s.hub.notifyAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.notify(n.Payload)
	}
}

func (s *PostgresStore) Watch(ctx context.Context, path string) (Subscription, error) {
	p, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	return s.hub.watch(ctx, p.collection, func(ctx context.Context) (Snapshot, error) {
		if p.isDoc() {
			return s.loadDocument(ctx, p)
		}
		return s.loadCollection(ctx, p)
	})
}

func (s *PostgresStore) loadCollection(ctx context.Context, p parsedPath) (Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc_id, data FROM documents WHERE collection = $1 ORDER BY created_at, doc_id`, p.collection)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	snap := Snapshot{Path: p.raw}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return Snapshot{}, fmt.Errorf("scan document: %w", err)
		}
		data, err := decode(raw)
		if err != nil {
			s.log.Warn(ctx, "skip undecodable document", "collection", p.collection, "id", id, "err", err)
			continue
		}
		snap.Docs = append(snap.Docs, Document{ID: id, Path: Join(p.collection, id), Data: data})
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("list documents: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) loadDocument(ctx context.Context, p parsedPath) (Snapshot, error) {
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

func (s *PostgresStore) Get(ctx context.Context, path string) (Document, error) {
	p, err := docPath(path)
	if err != nil {
		return Document{}, err
	}
	return s.get(ctx, p)
}

func (s *PostgresStore) get(ctx context.Context, p parsedPath) (Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2`, p.collection, p.docID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	data, err := decode(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: p.docID, Path: p.raw, Data: data}, nil
}

// write runs fn and the change notification in one transaction.
func (s *PostgresStore) write(ctx context.Context, collection string, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Create(ctx context.Context, path string, data Data) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	return s.write(ctx, p.collection, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, doc_id, data) VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, doc_id) DO NOTHING`, p.collection, p.docID, string(raw))
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyExists
		}
		return nil
	})
}

func (s *PostgresStore) Merge(ctx context.Context, path string, data Data) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	return s.write(ctx, p.collection, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, doc_id, data) VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, doc_id)
			 DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`,
			p.collection, p.docID, string(raw))
		if err != nil {
			return fmt.Errorf("merge document: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Update(ctx context.Context, path string, data Data) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	return s.write(ctx, p.collection, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
			 WHERE collection = $1 AND doc_id = $2`,
			p.collection, p.docID, string(raw))
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) Add(ctx context.Context, path string, data Data) (string, error) {
	p, err := collectionPath(path)
	if err != nil {
		return "", err
	}
	raw, err := encode(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = s.write(ctx, p.collection, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, doc_id, data) VALUES ($1, $2, $3::jsonb)`,
			p.collection, id, string(raw)); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	p, err := docPath(path)
	if err != nil {
		return err
	}
	return s.write(ctx, p.collection, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE collection = $1 AND doc_id = $2`, p.collection, p.docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	s.hub.close()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	err := s.sqlDB.Close()
	s.pool.Close()
	return err
}
