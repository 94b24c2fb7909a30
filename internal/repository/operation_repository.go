package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// OperationRepository persists the offline operation queue.
type OperationRepository interface {
	Get(ctx context.Context, id string) (*domain.OfflineOperation, error)
	List(ctx context.Context) ([]*domain.OfflineOperation, error)
	ListByTarget(ctx context.Context, targetID string) ([]*domain.OfflineOperation, error)
	Save(ctx context.Context, op *domain.OfflineOperation) error
	// SaveAll writes ops in one request.
	SaveAll(ctx context.Context, ops []*domain.OfflineOperation) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
}

type operationRepository struct {
	store
}

type operationDoc struct {
	ID          string                 `json:"_id"`
	Rev         string                 `json:"_rev,omitempty"`
	DocType     string                 `json:"doc_type"`
	OperationID string                 `json:"operation_id"`
	Type        domain.OperationType   `json:"type"`
	TargetID    string                 `json:"target_id"`
	Payload     json.RawMessage        `json:"payload,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Priority    int                    `json:"priority"`
	RetryCount  int                    `json:"retry_count"`
	LastError   string                 `json:"last_error,omitempty"`
	Status      domain.OperationStatus `json:"status"`
}

func NewOperationRepository(client *kivik.Client, dbName string) OperationRepository {
	return &operationRepository{store{db: client.DB(dbName)}}
}

func (r *operationRepository) Get(ctx context.Context, id string) (*domain.OfflineOperation, error) {
	var doc operationDoc
	if err := r.get(ctx, docID(docTypeOperation, id), &doc); err != nil {
		return nil, fmt.Errorf("failed to get operation %s: %w", id, err)
	}
	return docToOperation(&doc), nil
}

func (r *operationRepository) List(ctx context.Context) ([]*domain.OfflineOperation, error) {
	return r.list(ctx, map[string]interface{}{"doc_type": docTypeOperation})
}

func (r *operationRepository) ListByTarget(ctx context.Context, targetID string) ([]*domain.OfflineOperation, error) {
	return r.list(ctx, map[string]interface{}{
		"doc_type":  docTypeOperation,
		"target_id": targetID,
	})
}

func (r *operationRepository) list(ctx context.Context, selector map[string]interface{}) ([]*domain.OfflineOperation, error) {
	var ops []*domain.OfflineOperation
	err := r.find(ctx, selector, func(rows *kivik.ResultSet) error {
		var doc operationDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, docToOperation(&doc))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

func (r *operationRepository) Save(ctx context.Context, op *domain.OfflineOperation) error {
	id := docID(docTypeOperation, op.ID)
	rev, err := r.rev(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read operation revision: %w", err)
	}

	doc := operationToDoc(op)
	doc.Rev = rev
	if err := r.put(ctx, id, doc); err != nil {
		return fmt.Errorf("failed to save operation %s: %w", op.ID, err)
	}
	return nil
}

func (r *operationRepository) SaveAll(ctx context.Context, ops []*domain.OfflineOperation) error {
	docs := make([]interface{}, 0, len(ops))
	for _, op := range ops {
		rev, err := r.rev(ctx, docID(docTypeOperation, op.ID))
		if err != nil {
			return fmt.Errorf("failed to read operation revision: %w", err)
		}
		doc := operationToDoc(op)
		doc.Rev = rev
		docs = append(docs, doc)
	}

	if err := r.bulk(ctx, docs); err != nil {
		return fmt.Errorf("failed to save operations: %w", err)
	}
	return nil
}

func (r *operationRepository) Delete(ctx context.Context, id string) error {
	if err := r.remove(ctx, docID(docTypeOperation, id)); err != nil {
		return fmt.Errorf("failed to delete operation %s: %w", id, err)
	}
	return nil
}

func (r *operationRepository) DeleteAll(ctx context.Context) (int, error) {
	n, err := r.purge(ctx, map[string]interface{}{"doc_type": docTypeOperation})
	if err != nil {
		return n, fmt.Errorf("failed to delete operations: %w", err)
	}
	return n, nil
}

func operationToDoc(op *domain.OfflineOperation) *operationDoc {
	return &operationDoc{
		ID:          docID(docTypeOperation, op.ID),
		DocType:     docTypeOperation,
		OperationID: op.ID,
		Type:        op.Type,
		TargetID:    op.TargetID,
		Payload:     op.Payload,
		Timestamp:   op.Timestamp,
		Priority:    op.Priority,
		RetryCount:  op.RetryCount,
		LastError:   op.LastError,
		Status:      op.Status,
	}
}

func docToOperation(doc *operationDoc) *domain.OfflineOperation {
	return &domain.OfflineOperation{
		ID:         doc.OperationID,
		Type:       doc.Type,
		TargetID:   doc.TargetID,
		Payload:    doc.Payload,
		Timestamp:  doc.Timestamp,
		Priority:   doc.Priority,
		RetryCount: doc.RetryCount,
		LastError:  doc.LastError,
		Status:     doc.Status,
	}
}
