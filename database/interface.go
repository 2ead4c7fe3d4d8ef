package database

import (
	"time"

	"evidence-vault/model"
)

// Database interface for different record store implementations
type Database interface {
	// FileRecord operations
	CreateFileRecord(record *model.FileRecord) error
	GetFileRecordByFileID(fileID string) (*model.FileRecord, error)
	GetFileRecordByDigest(digest string) (*model.FileRecord, error)
	UpdateFileRecord(record *model.FileRecord) error
	DeleteFileRecord(fileID string) error
	ListFileRecordsWithCursor(owner string, durableStatus string, cursor int64, size int) ([]*model.FileRecord, int64, error)
	GetMigratableRecords(limit int) ([]*model.FileRecord, error)
	GetFailedMigrations(limit int) ([]*model.FileRecord, error)
	GetStalledUploading(before time.Time, limit int) ([]*model.FileRecord, error)
	CountFileRecords(durableStatus string) (int64, error)

	// PaymentLedgerEntry operations. Entries are append-only: the interface
	// deliberately has no update or delete for them.
	CreatePaymentEntry(entry *model.PaymentLedgerEntry) error
	ListPaymentEntriesByFileID(fileID string) ([]*model.PaymentLedgerEntry, error)

	// General operations
	Close() error
}

// DBType database type
type DBType string

const (
	DBTypeMySQL  DBType = "mysql"
	DBTypePebble DBType = "pebble"
)

// Global database instance
var DB Database

// currentDBType stores the current database type
var currentDBType DBType

// InitDatabase initialize database with specified type
func InitDatabase(dbType DBType, config interface{}) error {
	var err error

	switch dbType {
	case DBTypeMySQL:
		DB, err = NewMySQLDatabase(config)
		currentDBType = DBTypeMySQL
	case DBTypePebble:
		DB, err = NewPebbleDatabase(config)
		currentDBType = DBTypePebble
	default:
		return ErrUnsupportedDBType
	}

	return err
}

// GetDBType get current database type
func GetDBType() DBType {
	return currentDBType
}
