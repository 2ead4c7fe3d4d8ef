package database

import (
	"fmt"
	"testing"
	"time"

	"evidence-vault/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPebble(t *testing.T) Database {
	db, err := NewPebbleDatabase(&PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(n int) *model.FileRecord {
	return &model.FileRecord{
		FileId:        fmt.Sprintf("file-%d", n),
		OwnerAddress:  "owner-1",
		FileHash:      fmt.Sprintf("%064d", n),
		Cid:           fmt.Sprintf("QmCid%d", n),
		PinStatus:     model.PinStatusPinned,
		DurableStatus: model.DurableStatusQueued,
		FileName:      "sample.bin",
		FileSize:      128,
	}
}

func TestPebbleCreateAndGet(t *testing.T) {
	db := newTestPebble(t)

	record := testRecord(1)
	require.NoError(t, db.CreateFileRecord(record))
	assert.NotZero(t, record.ID)

	byID, err := db.GetFileRecordByFileID("file-1")
	require.NoError(t, err)
	assert.Equal(t, record.FileId, byID.FileId)
	assert.Equal(t, record.Cid, byID.Cid)

	byDigest, err := db.GetFileRecordByDigest(record.FileHash)
	require.NoError(t, err)
	assert.Equal(t, record.FileId, byDigest.FileId)

	_, err = db.GetFileRecordByFileID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleStatusIndexFollowsUpdates(t *testing.T) {
	db := newTestPebble(t)

	record := testRecord(1)
	require.NoError(t, db.CreateFileRecord(record))

	queued, err := db.GetMigratableRecords(10)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	record.DurableStatus = model.DurableStatusFailed
	record.LastError = "provider rejected"
	require.NoError(t, db.UpdateFileRecord(record))

	queued, err = db.GetMigratableRecords(10)
	require.NoError(t, err)
	assert.Empty(t, queued)

	failed, err := db.GetFailedMigrations(10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "provider rejected", failed[0].LastError)
}

func TestPebbleMigratableRequiresPin(t *testing.T) {
	db := newTestPebble(t)

	unpinned := testRecord(1)
	unpinned.PinStatus = model.PinStatusQueued
	require.NoError(t, db.CreateFileRecord(unpinned))

	pinned := testRecord(2)
	require.NoError(t, db.CreateFileRecord(pinned))

	records, err := db.GetMigratableRecords(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "file-2", records[0].FileId)
}

func TestPebbleStalledUploading(t *testing.T) {
	db := newTestPebble(t)

	old := testRecord(1)
	old.DurableStatus = model.DurableStatusUploading
	past := time.Now().Add(-2 * time.Hour)
	old.LastAttemptAt = &past
	require.NoError(t, db.CreateFileRecord(old))

	fresh := testRecord(2)
	fresh.DurableStatus = model.DurableStatusUploading
	now := time.Now()
	fresh.LastAttemptAt = &now
	require.NoError(t, db.CreateFileRecord(fresh))

	stalled, err := db.GetStalledUploading(time.Now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, "file-1", stalled[0].FileId)
}

func TestPebbleCursorPagination(t *testing.T) {
	db := newTestPebble(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, db.CreateFileRecord(testRecord(i)))
	}

	page, cursor, err := db.ListFileRecordsWithCursor("owner-1", "", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, "file-5", page[0].FileId)
	assert.Equal(t, "file-4", page[1].FileId)
	require.NotZero(t, cursor)

	page, _, err = db.ListFileRecordsWithCursor("owner-1", "", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "file-3", page[0].FileId)
}

func TestPebblePaymentTrailIsAppendOnly(t *testing.T) {
	db := newTestPebble(t)

	for i := 1; i <= 3; i++ {
		require.NoError(t, db.CreatePaymentEntry(&model.PaymentLedgerEntry{
			FileId:    "file-1",
			TxRef:     fmt.Sprintf("deal-%d", i),
			Kind:      "deal_payment",
			Amount:    0.04,
			TokenKind: "FIL",
			Status:    model.PaymentStatusConfirmed,
		}))
	}
	require.NoError(t, db.CreatePaymentEntry(&model.PaymentLedgerEntry{
		FileId: "file-2",
		TxRef:  "deal-other",
	}))

	entries, err := db.ListPaymentEntriesByFileID("file-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Append order preserved.
	assert.Equal(t, "deal-1", entries[0].TxRef)
	assert.Equal(t, "deal-3", entries[2].TxRef)
}

func TestPebbleDelete(t *testing.T) {
	db := newTestPebble(t)

	record := testRecord(1)
	require.NoError(t, db.CreateFileRecord(record))
	require.NoError(t, db.DeleteFileRecord("file-1"))

	_, err := db.GetFileRecordByFileID("file-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetFileRecordByDigest(record.FileHash)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing record is a no-op.
	assert.NoError(t, db.DeleteFileRecord("file-1"))
}
