package attachments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment is the metadata row for one supporting document on a workflow
// request. The bytes live in the configured blob store under StorageKey.
type Attachment struct {
	ID         uuid.UUID `gorm:"type:uuid;column:id;primaryKey" json:"id"`
	RequestID  uuid.UUID `gorm:"type:uuid;column:request_id;not null;index" json:"requestId"`
	UploadedBy uuid.UUID `gorm:"type:uuid;column:uploaded_by;not null" json:"uploadedBy"`
	FileName   string    `gorm:"type:varchar(255);column:file_name;not null" json:"fileName"`
	StorageKey string    `gorm:"type:varchar(255);column:storage_key;not null" json:"-"`
	SizeBytes  int64     `gorm:"column:size_bytes;not null" json:"sizeBytes"`
	MimeType   string    `gorm:"type:varchar(100);column:mime_type;not null" json:"mimeType"`
	URL        string    `gorm:"-" json:"url,omitempty"`
	CreatedAt  time.Time `gorm:"type:timestamptz;column:created_at;autoCreateTime" json:"createdAt"`
}

func (a *Attachment) TableName() string {
	return "workflow_request_attachments"
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
