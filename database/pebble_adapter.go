package database

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"evidence-vault/model"

	"github.com/cockroachdb/pebble"
)

// PebbleDatabase PebbleDB record store implementation with multiple collections
type PebbleDatabase struct {
	collections map[string]*pebble.DB // Map of collection name to PebbleDB instance

	recordIDCounter  atomic.Int64
	paymentIDCounter atomic.Int64
}

// PebbleConfig PebbleDB configuration
type PebbleConfig struct {
	DataDir string
}

// Collection names and their key-value formats
const (
	collectionFileByID     = "file_by_id"     // key: {file_id}, value: JSON(FileRecord)
	collectionFileByDigest = "file_by_digest" // key: {file_hash}, value: {file_id}
	collectionFileByOwner  = "file_by_owner"  // key: {owner}:{file_id}, value: {file_id}
	collectionFileByStatus = "file_by_status" // key: {durable_status}:{file_id}, value: {file_id}
	collectionPayments     = "payment_ledger" // key: {file_id}:{seq}, value: JSON(PaymentLedgerEntry)
	collectionCounters     = "counters"       // key: record/payment, value: {max_id}
)

// Counter keys
const (
	keyRecordCounter  = "record"
	keyPaymentCounter = "payment"
)

// NewPebbleDatabase create PebbleDB record store instance
func NewPebbleDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*PebbleConfig)
	if !ok {
		return nil, fmt.Errorf("invalid PebbleDB config type")
	}

	if err := os.MkdirAll(cfg.DataDir, 0777); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	collectionNames := []string{
		collectionFileByID,
		collectionFileByDigest,
		collectionFileByOwner,
		collectionFileByStatus,
		collectionPayments,
		collectionCounters,
	}

	collections := make(map[string]*pebble.DB, len(collectionNames))
	for _, name := range collectionNames {
		collectionPath := filepath.Join(cfg.DataDir, name)
		db, err := pebble.Open(collectionPath, &pebble.Options{})
		if err != nil {
			for _, openedDB := range collections {
				openedDB.Close()
			}
			return nil, fmt.Errorf("failed to open collection %s at %s: %w", name, collectionPath, err)
		}
		collections[name] = db
	}

	pdb := &PebbleDatabase{collections: collections}
	if err := pdb.loadCounters(); err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}

	log.Printf("PebbleDB record store opened with %d collections at %s", len(collections), cfg.DataDir)
	return pdb, nil
}

// loadCounters load ID counters from the counters collection
func (p *PebbleDatabase) loadCounters() error {
	counterDB := p.collections[collectionCounters]

	if val, closer, err := counterDB.Get([]byte(keyRecordCounter)); err == nil {
		count, _ := strconv.ParseInt(string(val), 10, 64)
		p.recordIDCounter.Store(count)
		closer.Close()
	}
	if val, closer, err := counterDB.Get([]byte(keyPaymentCounter)); err == nil {
		count, _ := strconv.ParseInt(string(val), 10, 64)
		p.paymentIDCounter.Store(count)
		closer.Close()
	}
	return nil
}

func (p *PebbleDatabase) saveCounter(key string, value int64) error {
	counterDB := p.collections[collectionCounters]
	return counterDB.Set([]byte(key), []byte(strconv.FormatInt(value, 10)), pebble.Sync)
}

// prefixUpperBound returns the smallest key greater than every key with the prefix.
func prefixUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		bound[i]++
		if bound[i] != 0 {
			return bound[:i+1]
		}
	}
	return nil
}

func statusKey(status model.DurableStatus, fileID string) []byte {
	return []byte(string(status) + ":" + fileID)
}

func ownerKey(owner, fileID string) []byte {
	return []byte(owner + ":" + fileID)
}

// FileRecord operations

func (p *PebbleDatabase) CreateFileRecord(record *model.FileRecord) error {
	if record.ID == 0 {
		record.ID = p.recordIDCounter.Add(1)
		if err := p.saveCounter(keyRecordCounter, record.ID); err != nil {
			return err
		}
	}
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal file record: %w", err)
	}

	if err := p.collections[collectionFileByID].Set([]byte(record.FileId), data, pebble.Sync); err != nil {
		return err
	}
	if err := p.collections[collectionFileByDigest].Set([]byte(record.FileHash), []byte(record.FileId), pebble.Sync); err != nil {
		return err
	}
	if err := p.collections[collectionFileByOwner].Set(ownerKey(record.OwnerAddress, record.FileId), []byte(record.FileId), pebble.Sync); err != nil {
		return err
	}
	return p.collections[collectionFileByStatus].Set(statusKey(record.DurableStatus, record.FileId), []byte(record.FileId), pebble.Sync)
}

func (p *PebbleDatabase) GetFileRecordByFileID(fileID string) (*model.FileRecord, error) {
	val, closer, err := p.collections[collectionFileByID].Get([]byte(fileID))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var record model.FileRecord
	if err := json.Unmarshal(val, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file record %s: %w", fileID, err)
	}
	return &record, nil
}

func (p *PebbleDatabase) GetFileRecordByDigest(digest string) (*model.FileRecord, error) {
	val, closer, err := p.collections[collectionFileByDigest].Get([]byte(digest))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fileID := string(val)
	closer.Close()

	return p.GetFileRecordByFileID(fileID)
}

func (p *PebbleDatabase) UpdateFileRecord(record *model.FileRecord) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}

	// The durable status secondary index must follow status transitions.
	previous, err := p.GetFileRecordByFileID(record.FileId)
	if err != nil {
		return err
	}
	if previous.DurableStatus != record.DurableStatus {
		if err := p.collections[collectionFileByStatus].Delete(statusKey(previous.DurableStatus, record.FileId), pebble.Sync); err != nil {
			return err
		}
		if err := p.collections[collectionFileByStatus].Set(statusKey(record.DurableStatus, record.FileId), []byte(record.FileId), pebble.Sync); err != nil {
			return err
		}
	}

	record.UpdatedAt = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal file record: %w", err)
	}
	return p.collections[collectionFileByID].Set([]byte(record.FileId), data, pebble.Sync)
}

func (p *PebbleDatabase) DeleteFileRecord(fileID string) error {
	record, err := p.GetFileRecordByFileID(fileID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.collections[collectionFileByStatus].Delete(statusKey(record.DurableStatus, fileID), pebble.Sync); err != nil {
		return err
	}
	if err := p.collections[collectionFileByOwner].Delete(ownerKey(record.OwnerAddress, fileID), pebble.Sync); err != nil {
		return err
	}
	if err := p.collections[collectionFileByDigest].Delete([]byte(record.FileHash), pebble.Sync); err != nil {
		return err
	}
	return p.collections[collectionFileByID].Delete([]byte(fileID), pebble.Sync)
}

// loadByIndex resolves file ids from an index collection prefix scan.
func (p *PebbleDatabase) loadByIndex(collection string, prefix []byte, limit int) ([]*model.FileRecord, error) {
	iter, err := p.collections[collection].NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []*model.FileRecord
	for iter.First(); iter.Valid(); iter.Next() {
		record, err := p.GetFileRecordByFileID(string(iter.Value()))
		if err == ErrNotFound {
			continue // stale index entry
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

// sortRecordsByIDDesc sorts records newest-first then slices by cursor+size.
func sortRecordsByIDDesc(records []*model.FileRecord, cursor int64, size int) ([]*model.FileRecord, int64) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID > records[j].ID
	})

	var page []*model.FileRecord
	for _, r := range records {
		if cursor > 0 && r.ID >= cursor {
			continue
		}
		page = append(page, r)
		if size > 0 && len(page) >= size {
			break
		}
	}

	var nextCursor int64
	if len(page) > 0 {
		nextCursor = page[len(page)-1].ID
	}
	return page, nextCursor
}

func (p *PebbleDatabase) ListFileRecordsWithCursor(owner string, durableStatus string, cursor int64, size int) ([]*model.FileRecord, int64, error) {
	var (
		records []*model.FileRecord
		err     error
	)
	switch {
	case owner != "":
		records, err = p.loadByIndex(collectionFileByOwner, []byte(owner+":"), 0)
		if err == nil && durableStatus != "" {
			filtered := records[:0]
			for _, r := range records {
				if string(r.DurableStatus) == durableStatus {
					filtered = append(filtered, r)
				}
			}
			records = filtered
		}
	case durableStatus != "":
		records, err = p.loadByIndex(collectionFileByStatus, []byte(durableStatus+":"), 0)
	default:
		records, err = p.scanAllRecords()
	}
	if err != nil {
		return nil, 0, err
	}

	page, nextCursor := sortRecordsByIDDesc(records, cursor, size)
	return page, nextCursor, nil
}

func (p *PebbleDatabase) scanAllRecords() ([]*model.FileRecord, error) {
	iter, err := p.collections[collectionFileByID].NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []*model.FileRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var record model.FileRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal file record %s: %w", string(iter.Key()), err)
		}
		records = append(records, &record)
	}
	return records, nil
}

func (p *PebbleDatabase) GetMigratableRecords(limit int) ([]*model.FileRecord, error) {
	candidates, err := p.loadByIndex(collectionFileByStatus, []byte(string(model.DurableStatusQueued)+":"), 0)
	if err != nil {
		return nil, err
	}

	var records []*model.FileRecord
	for _, r := range candidates {
		if r.PinStatus != model.PinStatusPinned {
			continue
		}
		records = append(records, r)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (p *PebbleDatabase) GetFailedMigrations(limit int) ([]*model.FileRecord, error) {
	records, err := p.loadByIndex(collectionFileByStatus, []byte(string(model.DurableStatusFailed)+":"), limit)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (p *PebbleDatabase) GetStalledUploading(before time.Time, limit int) ([]*model.FileRecord, error) {
	candidates, err := p.loadByIndex(collectionFileByStatus, []byte(string(model.DurableStatusUploading)+":"), 0)
	if err != nil {
		return nil, err
	}

	var records []*model.FileRecord
	for _, r := range candidates {
		if r.LastAttemptAt == nil || !r.LastAttemptAt.Before(before) {
			continue
		}
		records = append(records, r)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

func (p *PebbleDatabase) CountFileRecords(durableStatus string) (int64, error) {
	if durableStatus != "" {
		records, err := p.loadByIndex(collectionFileByStatus, []byte(durableStatus+":"), 0)
		if err != nil {
			return 0, err
		}
		return int64(len(records)), nil
	}

	iter, err := p.collections[collectionFileByID].NewIter(nil)
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count int64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, nil
}

// PaymentLedgerEntry operations

func (p *PebbleDatabase) CreatePaymentEntry(entry *model.PaymentLedgerEntry) error {
	if entry.ID == 0 {
		entry.ID = p.paymentIDCounter.Add(1)
		if err := p.saveCounter(keyPaymentCounter, entry.ID); err != nil {
			return err
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal payment entry: %w", err)
	}

	// Zero-padded sequence keeps entries in append order under the prefix.
	key := []byte(fmt.Sprintf("%s:%012d", entry.FileId, entry.ID))
	return p.collections[collectionPayments].Set(key, data, pebble.Sync)
}

func (p *PebbleDatabase) ListPaymentEntriesByFileID(fileID string) ([]*model.PaymentLedgerEntry, error) {
	prefix := []byte(fileID + ":")
	iter, err := p.collections[collectionPayments].NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []*model.PaymentLedgerEntry
	for iter.First(); iter.Valid(); iter.Next() {
		var entry model.PaymentLedgerEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment entry %s: %w", string(iter.Key()), err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Close close all collections
func (p *PebbleDatabase) Close() error {
	var firstErr error
	for name, db := range p.collections {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close collection %s: %w", name, err)
		}
	}
	return firstErr
}
