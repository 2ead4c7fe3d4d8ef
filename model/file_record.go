package model

import "time"

// FileRecord tracks one uploaded file through the pin -> durable migration
// pipeline. Pin status must reach pinned before durable status may leave
// queued; durable completed is terminal and immutable.
type FileRecord struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// Identity
	FileId       string `gorm:"uniqueIndex;type:varchar(64)" json:"file_id"`  // Opaque record id (uuid)
	OwnerAddress string `gorm:"index;type:varchar(255)" json:"owner_address"` // Owner wallet/account reference
	FileHash     string `gorm:"index;type:varchar(64)" json:"file_hash"`      // SHA256 of raw bytes, computed locally

	// Pin layer
	Cid       string    `gorm:"index;type:varchar(255)" json:"cid"`                // Content identifier from the pinning layer
	PinStatus PinStatus `gorm:"type:varchar(20);default:'queued'" json:"pin_status"`
	PinError  string    `gorm:"type:text" json:"pin_error"`

	// Durable layer
	PieceId       string        `gorm:"type:varchar(255)" json:"piece_id"`
	DealId        string        `gorm:"type:varchar(255)" json:"deal_id"`
	DealProvider  string        `gorm:"type:varchar(255)" json:"deal_provider"`
	DealPath      DealPath      `gorm:"type:varchar(20)" json:"deal_path"` // primary/direct
	DurableStatus DurableStatus `gorm:"index;type:varchar(20);default:'queued'" json:"durable_status"`
	AttemptCount  int           `gorm:"type:int;default:0" json:"attempt_count"`
	LastAttemptAt *time.Time    `gorm:"type:timestamp" json:"last_attempt_at"`
	LastError     string        `gorm:"type:text" json:"last_error"`

	// Metadata
	FileName    string `gorm:"type:varchar(255)" json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `gorm:"type:varchar(100)" json:"content_type"`
	Tags        string `gorm:"type:text" json:"tags"`                 // Sanitized key/value tags (JSON object)
	StoragePath string `gorm:"type:varchar(500)" json:"storage_path"` // Staging store key

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets custom table name
func (FileRecord) TableName() string {
	return "tb_file_record"
}
