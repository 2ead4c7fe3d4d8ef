package database

import (
	"fmt"
	"log"
	"time"

	"evidence-vault/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDatabase MySQL database implementation
type MySQLDatabase struct {
	db *gorm.DB
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// NewMySQLDatabase create MySQL database instance
func NewMySQLDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*MySQLConfig)
	if !ok {
		return nil, fmt.Errorf("invalid MySQL config type")
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Set connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.FileRecord{}, &model.PaymentLedgerEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Println("MySQL database connected successfully")

	return &MySQLDatabase{db: db}, nil
}

// FileRecord operations

func (m *MySQLDatabase) CreateFileRecord(record *model.FileRecord) error {
	return m.db.Create(record).Error
}

func (m *MySQLDatabase) GetFileRecordByFileID(fileID string) (*model.FileRecord, error) {
	var record model.FileRecord
	err := m.db.Where("file_id = ?", fileID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (m *MySQLDatabase) GetFileRecordByDigest(digest string) (*model.FileRecord, error) {
	var record model.FileRecord
	err := m.db.Where("file_hash = ?", digest).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (m *MySQLDatabase) UpdateFileRecord(record *model.FileRecord) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	return m.db.Model(&model.FileRecord{}).
		Where("id = ?", record.ID).
		Select("*").
		Updates(record).Error
}

func (m *MySQLDatabase) DeleteFileRecord(fileID string) error {
	return m.db.Where("file_id = ?", fileID).Delete(&model.FileRecord{}).Error
}

func (m *MySQLDatabase) ListFileRecordsWithCursor(owner string, durableStatus string, cursor int64, size int) ([]*model.FileRecord, int64, error) {
	var records []*model.FileRecord
	query := m.db.Order("id DESC")
	if owner != "" {
		query = query.Where("owner_address = ?", owner)
	}
	if durableStatus != "" {
		query = query.Where("durable_status = ?", durableStatus)
	}
	if cursor > 0 {
		query = query.Where("id < ?", cursor)
	}

	err := query.Limit(size).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	var nextCursor int64
	if len(records) > 0 {
		nextCursor = records[len(records)-1].ID
	}
	return records, nextCursor, nil
}

func (m *MySQLDatabase) GetMigratableRecords(limit int) ([]*model.FileRecord, error) {
	var records []*model.FileRecord
	err := m.db.Where("durable_status = ? AND pin_status = ?", model.DurableStatusQueued, model.PinStatusPinned).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (m *MySQLDatabase) GetFailedMigrations(limit int) ([]*model.FileRecord, error) {
	var records []*model.FileRecord
	err := m.db.Where("durable_status = ?", model.DurableStatusFailed).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (m *MySQLDatabase) GetStalledUploading(before time.Time, limit int) ([]*model.FileRecord, error) {
	var records []*model.FileRecord
	err := m.db.Where("durable_status = ? AND last_attempt_at < ?", model.DurableStatusUploading, before).
		Order("last_attempt_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (m *MySQLDatabase) CountFileRecords(durableStatus string) (int64, error) {
	var count int64
	query := m.db.Model(&model.FileRecord{})
	if durableStatus != "" {
		query = query.Where("durable_status = ?", durableStatus)
	}
	err := query.Count(&count).Error
	return count, err
}

// PaymentLedgerEntry operations

func (m *MySQLDatabase) CreatePaymentEntry(entry *model.PaymentLedgerEntry) error {
	return m.db.Create(entry).Error
}

func (m *MySQLDatabase) ListPaymentEntriesByFileID(fileID string) ([]*model.PaymentLedgerEntry, error) {
	var entries []*model.PaymentLedgerEntry
	err := m.db.Where("file_id = ?", fileID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// Close close database connection
func (m *MySQLDatabase) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
