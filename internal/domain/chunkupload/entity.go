package chunkupload

import "time"

// Status is the lifecycle state of an upload session.
// initializing -> active -> completed, with cancelled and expired as the
// terminal alternatives. There is no transition out of a terminal state; a
// new session must be started instead.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
	StatusExpired      Status = "expired"
)

// Session tracks one in-progress large-file upload. It belongs to exactly one
// organization and one logical upload and is never visible across orgs.
type Session struct {
	ID              string    `gorm:"column:id;primaryKey" json:"id"`
	OrgID           int64     `gorm:"column:org_id;index" json:"org_id"`
	UploaderID      int64     `gorm:"column:uploader_id" json:"uploader_id"`
	FileName        string    `gorm:"column:file_name" json:"file_name"`
	MimeType        string    `gorm:"column:mime_type" json:"mime_type"`
	StorageKey      string    `gorm:"column:storage_key" json:"storage_key"`
	FileSize        int64     `gorm:"column:file_size" json:"file_size"`
	ChunkSize       int64     `gorm:"column:chunk_size" json:"chunk_size"`
	TotalChunks     int       `gorm:"column:total_chunks" json:"total_chunks"`
	ConfirmedChunks int       `gorm:"column:confirmed_chunks" json:"confirmed_chunks"`
	BackendUploadID string    `gorm:"column:backend_upload_id" json:"-"`
	Status          Status    `gorm:"column:status;index" json:"status"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	ExpiresAt       time.Time `gorm:"column:expires_at;index" json:"expires_at"`
}

func (Session) TableName() string { return "chunked_upload_sessions" }

// IsTerminal reports whether no further transitions are possible.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusCancelled || s.Status == StatusExpired
}

// IsPastDeadline reports whether the session outlived its expiry deadline.
func (s *Session) IsPastDeadline(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Chunk records one confirmed part. The composite primary key makes the
// first confirmation of an index an atomic insert; later confirmations of
// the same index are resolved by comparing integrity tags.
type Chunk struct {
	SessionID   string    `gorm:"column:session_id;primaryKey" json:"session_id"`
	Index       int       `gorm:"column:chunk_index;primaryKey" json:"index"`
	ETag        string    `gorm:"column:etag" json:"etag"`
	ConfirmedAt time.Time `gorm:"column:confirmed_at" json:"confirmed_at"`
}

func (Chunk) TableName() string { return "chunked_upload_chunks" }
