package dao

import (
	"fmt"
	"log"
	"time"

	"evidence-vault/database"
	"evidence-vault/model"
)

// FileRecordDAO data access layer for file records.
type FileRecordDAO struct{}

// NewFileRecordDAO creates a new DAO instance.
func NewFileRecordDAO() *FileRecordDAO {
	return &FileRecordDAO{}
}

func fileRecordCacheKey(fileID string) string {
	return "file:record:" + fileID
}

// Create inserts a new file record.
func (dao *FileRecordDAO) Create(record *model.FileRecord) error {
	return database.DB.CreateFileRecord(record)
}

// GetByFileID fetches a record by its opaque file id. Reads go through the
// cache; the cache layer degrades to a miss when Redis is unavailable.
func (dao *FileRecordDAO) GetByFileID(fileID string) (*model.FileRecord, error) {
	var cached model.FileRecord
	if err := database.GetCache(fileRecordCacheKey(fileID), &cached); err == nil {
		return &cached, nil
	}

	record, err := database.DB.GetFileRecordByFileID(fileID)
	if err != nil {
		return nil, err
	}
	if setErr := database.SetCache(fileRecordCacheKey(fileID), record); setErr != nil {
		log.Printf("⚠️  Failed to cache file record %s: %v", fileID, setErr)
	}
	return record, nil
}

// GetByDigest fetches a record by content digest, used for duplicate detection.
func (dao *FileRecordDAO) GetByDigest(digest string) (*model.FileRecord, error) {
	return database.DB.GetFileRecordByDigest(digest)
}

// Update persists record changes and invalidates the cached copy.
func (dao *FileRecordDAO) Update(record *model.FileRecord) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if err := database.DB.UpdateFileRecord(record); err != nil {
		return err
	}
	database.DeleteCache(fileRecordCacheKey(record.FileId))
	return nil
}

// Delete removes a record. Only owner-initiated deletes reach this.
func (dao *FileRecordDAO) Delete(fileID string) error {
	if err := database.DB.DeleteFileRecord(fileID); err != nil {
		return err
	}
	database.DeleteCache(fileRecordCacheKey(fileID))
	return nil
}

// ListWithCursor returns records filtered by owner and/or durable status,
// newest first, using cursor pagination (id desc).
func (dao *FileRecordDAO) ListWithCursor(owner, durableStatus string, cursor int64, size int) ([]*model.FileRecord, int64, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	return database.DB.ListFileRecordsWithCursor(owner, durableStatus, cursor, size)
}

// GetMigratable returns pinned records still queued for durable storage,
// ordered by creation time ascending.
func (dao *FileRecordDAO) GetMigratable(limit int) ([]*model.FileRecord, error) {
	return database.DB.GetMigratableRecords(limit)
}

// GetFailed returns records whose last migration attempt failed.
func (dao *FileRecordDAO) GetFailed(limit int) ([]*model.FileRecord, error) {
	return database.DB.GetFailedMigrations(limit)
}

// GetStalledUploading returns uploading records whose last attempt started
// before the given time. These are crash/deadline leftovers the retry
// operation reclaims.
func (dao *FileRecordDAO) GetStalledUploading(before time.Time, limit int) ([]*model.FileRecord, error) {
	return database.DB.GetStalledUploading(before, limit)
}

// Count returns total number of records (optional by durable status).
func (dao *FileRecordDAO) Count(durableStatus string) (int64, error) {
	return database.DB.CountFileRecords(durableStatus)
}
