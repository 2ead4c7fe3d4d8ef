package deal_service

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evidence-vault/common"
	"evidence-vault/database"
	"evidence-vault/model"
	"evidence-vault/model/dao"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecordStore satisfies database.Database for these tests. Only the
// payment trail is exercised here.
type fakeRecordStore struct {
	payments []*model.PaymentLedgerEntry
}

func (f *fakeRecordStore) CreateFileRecord(*model.FileRecord) error { return nil }
func (f *fakeRecordStore) GetFileRecordByFileID(string) (*model.FileRecord, error) {
	return nil, database.ErrNotFound
}
func (f *fakeRecordStore) GetFileRecordByDigest(string) (*model.FileRecord, error) {
	return nil, database.ErrNotFound
}
func (f *fakeRecordStore) UpdateFileRecord(*model.FileRecord) error { return nil }
func (f *fakeRecordStore) DeleteFileRecord(string) error            { return nil }
func (f *fakeRecordStore) ListFileRecordsWithCursor(string, string, int64, int) ([]*model.FileRecord, int64, error) {
	return nil, 0, nil
}
func (f *fakeRecordStore) GetMigratableRecords(int) ([]*model.FileRecord, error) { return nil, nil }
func (f *fakeRecordStore) GetFailedMigrations(int) ([]*model.FileRecord, error)  { return nil, nil }
func (f *fakeRecordStore) GetStalledUploading(time.Time, int) ([]*model.FileRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) CountFileRecords(string) (int64, error) { return 0, nil }
func (f *fakeRecordStore) CreatePaymentEntry(entry *model.PaymentLedgerEntry) error {
	f.payments = append(f.payments, entry)
	return nil
}
func (f *fakeRecordStore) ListPaymentEntriesByFileID(fileID string) ([]*model.PaymentLedgerEntry, error) {
	var out []*model.PaymentLedgerEntry
	for _, e := range f.payments {
		if e.FileId == fileID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeRecordStore) Close() error { return nil }

type fakeDownloader struct {
	data []byte
	err  error
}

func (f *fakeDownloader) Download(string) ([]byte, error) { return f.data, f.err }

func newGateServer(t *testing.T, balance float64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/balance", r.URL.Path)
		fmt.Fprintf(w, `{"balance":%v}`, balance)
	}))
}

func newDealEnv(t *testing.T, gateURL, dealURL string, pin Downloader) (*DealClient, *fakeRecordStore) {
	store := &fakeRecordStore{}
	database.DB = store

	gate := NewPaymentGate(gateURL, "", "testnet", "FIL", 0.1, 5*time.Second)
	client := NewDealClient(dealURL, "", "testnet", 180, 5*time.Second,
		pin, gate, dao.NewPaymentLedgerDAO())
	return client, store
}

func TestMigratePrimaryPath(t *testing.T) {
	gateServer := newGateServer(t, 2.5)
	defer gateServer.Close()

	dealServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/deals", r.URL.Path)
		w.Write([]byte(`{"pieceCid":"baga6ea4seaqprovider","dealId":"deal-100","provider":"f0123","cost":0.04}`))
	}))
	defer dealServer.Close()

	pin := &fakeDownloader{data: []byte("stored bytes")}
	client, store := newDealEnv(t, gateServer.URL, dealServer.URL, pin)

	result, err := client.Migrate("file-1", "owner-1", "QmCid", nil)
	require.NoError(t, err)

	assert.Equal(t, "baga6ea4seaqprovider", result.PieceId)
	assert.Equal(t, "deal-100", result.DealId)
	assert.Equal(t, model.DealPathPrimary, result.Path)
	assert.Equal(t, int64(len("stored bytes")), result.FileSize)
	assert.Equal(t, int64(180), result.DealDurationDays)

	// Payment trail carries the deal reference.
	require.Len(t, store.payments, 1)
	assert.Equal(t, "deal-100", store.payments[0].TxRef)
	assert.Equal(t, 0.04, store.payments[0].Amount)
	assert.Equal(t, model.PaymentStatusConfirmed, store.payments[0].Status)
}

func TestMigrateDirectDealFallback(t *testing.T) {
	gateServer := newGateServer(t, 2.5)
	defer gateServer.Close()

	dealServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/deals":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/api/v1/deals/direct":
			w.Write([]byte(`{"dealId":"direct-7"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer dealServer.Close()

	data := []byte("stored bytes")
	pin := &fakeDownloader{data: data}
	client, _ := newDealEnv(t, gateServer.URL, dealServer.URL, pin)

	result, err := client.Migrate("file-2", "owner-1", "QmCid", nil)
	require.NoError(t, err)

	assert.Equal(t, model.DealPathDirect, result.Path)
	assert.Equal(t, "direct-7", result.DealId)
	assert.Equal(t, "direct", result.Provider)
	assert.True(t, strings.HasPrefix(result.PieceId, PiecePrefix))
	assert.Equal(t, DerivePieceID(common.Sha256Hex(data)), result.PieceId)
}

func TestMigrateInsufficientFunds(t *testing.T) {
	gateServer := newGateServer(t, 0.01)
	defer gateServer.Close()

	pin := &fakeDownloader{data: []byte("stored bytes")}
	client, store := newDealEnv(t, gateServer.URL, "http://unused", pin)

	_, err := client.Migrate("file-3", "owner-1", "QmCid", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, store.payments)
}

func TestMigrateDownloadFailureIsFatal(t *testing.T) {
	pin := &fakeDownloader{err: errors.New("gateways exhausted")}
	client, _ := newDealEnv(t, "http://unused", "http://unused", pin)

	_, err := client.Migrate("file-4", "owner-1", "QmCid", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pin download")
}

func TestDerivePieceID(t *testing.T) {
	id := DerivePieceID(common.Sha256Hex([]byte("abc")))
	assert.True(t, strings.HasPrefix(id, PiecePrefix))
	assert.Equal(t, len(PiecePrefix)+40, len(id))
	assert.Equal(t, strings.ToLower(id), id)

	// Deterministic for identical digests.
	assert.Equal(t, id, DerivePieceID(common.Sha256Hex([]byte("abc"))))
}

func TestGateSetUpIdempotent(t *testing.T) {
	var allowanceCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/balance":
			w.Write([]byte(`{"balance":5.0}`))
		case "/api/v1/allowance":
			allowanceCalls++
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	gate := NewPaymentGate(server.URL, "", "testnet", "FIL", 0.1, 5*time.Second)

	result, err := gate.SetUp("owner-1")
	require.NoError(t, err)
	assert.True(t, result.IsReady)
	assert.Equal(t, 0, allowanceCalls, "funded account must not trigger an allowance call")
}

func TestGateWasReadyTracksLastObservation(t *testing.T) {
	server := newGateServer(t, 2.5)

	gate := NewPaymentGate(server.URL, "", "testnet", "FIL", 0.1, 5*time.Second)
	assert.False(t, gate.WasReady("owner-1"), "no observation yet")

	_, err := gate.CheckStatus("owner-1")
	require.NoError(t, err)
	assert.True(t, gate.WasReady("owner-1"))

	// The last observation survives a gate outage.
	server.Close()
	_, err = gate.CheckStatus("owner-1")
	require.Error(t, err)
	assert.True(t, gate.WasReady("owner-1"))
	assert.False(t, gate.WasReady("owner-2"), "readiness is per owner")
}
