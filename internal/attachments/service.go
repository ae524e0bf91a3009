package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAttachmentNotFound is returned when no attachment row matches.
var ErrAttachmentNotFound = errors.New("attachment not found")

// Service stores attachment bytes in the blob store and their metadata in the
// database, keyed by workflow request.
type Service struct {
	db    *gorm.DB
	store BlobStore
}

func NewService(db *gorm.DB, store BlobStore) *Service {
	return &Service{db: db, store: store}
}

// Attach saves the file content and records metadata against the request.
func (s *Service) Attach(ctx context.Context, requestID, uploadedBy uuid.UUID, fileName string, reader io.Reader, size int64, mimeType string) (*Attachment, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id := uuid.New()
	key := fmt.Sprintf("%s%s", id.String(), filepath.Ext(fileName))

	if err := s.store.Put(ctx, key, reader, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	attachment := &Attachment{
		ID:         id,
		RequestID:  requestID,
		UploadedBy: uploadedBy,
		FileName:   fileName,
		StorageKey: key,
		SizeBytes:  size,
		MimeType:   mimeType,
	}
	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		if delErr := s.store.Remove(ctx, key); delErr != nil {
			slog.WarnContext(ctx, "failed to clean up orphaned attachment", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}

	if url, err := s.store.URL(ctx, key, 0); err == nil {
		attachment.URL = url
	}
	slog.InfoContext(ctx, "attachment stored", "attachmentID", id, "requestID", requestID)
	return attachment, nil
}

// List returns all attachments recorded for the request, with download URLs.
func (s *Service) List(ctx context.Context, requestID uuid.UUID) ([]Attachment, error) {
	var rows []Attachment
	err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	for i := range rows {
		if url, err := s.store.URL(ctx, rows[i].StorageKey, time.Hour); err == nil {
			rows[i].URL = url
		}
	}
	return rows, nil
}

// Open streams one attachment's content by ID.
func (s *Service) Open(ctx context.Context, attachmentID uuid.UUID) (*Attachment, io.ReadCloser, error) {
	var attachment Attachment
	result := s.db.WithContext(ctx).First(&attachment, "id = ?", attachmentID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, fmt.Errorf("failed to load attachment: %w", result.Error)
	}

	reader, contentType, err := s.store.Open(ctx, attachment.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment content: %w", err)
	}
	if attachment.MimeType == "" {
		attachment.MimeType = contentType
	}
	return &attachment, reader, nil
}
