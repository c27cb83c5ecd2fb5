package storageconfig

import "time"

// StorageConfig is one organization's custom storage backend. Credential
// fields are stored encrypted by the vault and only ever decrypted
// transiently during resolution. Rows are never physically deleted while
// asset keys may still reference the backend; rotation deactivates the old
// row and keeps it for audit.
type StorageConfig struct {
	ID            int64     `gorm:"column:id;primaryKey" json:"id"`
	OrgID         int64     `gorm:"column:org_id;index:idx_storage_configs_org" json:"org_id"`
	Provider      string    `gorm:"column:provider" json:"provider"`
	Bucket        string    `gorm:"column:bucket" json:"bucket"`
	Region        string    `gorm:"column:region" json:"region"`
	Endpoint      string    `gorm:"column:endpoint" json:"endpoint,omitempty"`
	AccessKeyEnc  string    `gorm:"column:access_key_enc" json:"-"`
	SecretKeyEnc  string    `gorm:"column:secret_key_enc" json:"-"`
	PublicBaseURL string    `gorm:"column:public_base_url" json:"public_base_url,omitempty"`
	UsePathStyle  bool      `gorm:"column:use_path_style" json:"use_path_style"`
	Active        bool      `gorm:"column:active;index:idx_storage_configs_org" json:"active"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (StorageConfig) TableName() string { return "storage_configs" }
