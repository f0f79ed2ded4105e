package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"daily-tracker/internal/model"
)

var (
	// ErrDocumentExists is returned by Insert when the document is already stored.
	ErrDocumentExists = errors.New("document already exists")
	// ErrDocumentNotFound is returned by Update when there is nothing to update.
	ErrDocumentNotFound = errors.New("document not found")
)

// DocumentRepository stores raw JSON documents keyed by collection path and id.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// ListByCollection returns every document of a collection in insertion order.
func (r *DocumentRepository) ListByCollection(ctx context.Context, collection string) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("collection = ?", collection).
		Order("created_at ASC, id ASC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Find returns gorm.ErrRecordNotFound when the document is absent.
func (r *DocumentRepository) Find(ctx context.Context, collection, docID string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("collection = ? AND doc_id = ?", collection, docID).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Insert creates the document unless one with the same path exists.
func (r *DocumentRepository) Insert(ctx context.Context, doc *model.Document) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(doc)
	if res.Error != nil {
		return fmt.Errorf("insert document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDocumentExists
	}
	return nil
}

// Upsert reads the stored document inside a transaction, lets mutate produce
// the new JSON payload (nil when absent) and writes it back.
func (r *DocumentRepository) Upsert(ctx context.Context, collection, docID string, mutate func(current *string) (string, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		err := tx.Where("collection = ? AND doc_id = ?", collection, docID).First(&doc).Error
		switch {
		case err == nil:
			data, err := mutate(&doc.Data)
			if err != nil {
				return err
			}
			if err := tx.Model(&doc).Update("data", data).Error; err != nil {
				return fmt.Errorf("update document: %w", err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			data, err := mutate(nil)
			if err != nil {
				return err
			}
			doc = model.Document{Collection: collection, DocID: docID, Data: data}
			if err := tx.Create(&doc).Error; err != nil {
				return fmt.Errorf("create document: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("find document: %w", err)
		}
	})
}

// Update rewrites an existing document through mutate. A missing document
// is left missing and reported as ErrDocumentNotFound.
func (r *DocumentRepository) Update(ctx context.Context, collection, docID string, mutate func(current string) (string, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		err := tx.Where("collection = ? AND doc_id = ?", collection, docID).First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return fmt.Errorf("find document: %w", err)
		}
		data, err := mutate(doc.Data)
		if err != nil {
			return err
		}
		res := tx.Model(&doc).Update("data", data)
		if res.Error != nil {
			return fmt.Errorf("update document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDocumentNotFound
		}
		return nil
	})
}

// Delete removes a document; deleting a missing document is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, collection, docID string) error {
	if err := r.db.WithContext(ctx).Where("collection = ? AND doc_id = ?", collection, docID).
		Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
