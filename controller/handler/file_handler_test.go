package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"evidence-vault/conf"
	"evidence-vault/controller/respond"
	"evidence-vault/database"
	"evidence-vault/service/deal_service"
	"evidence-vault/service/pin_service"
	"evidence-vault/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newUploadEnv(t *testing.T) *gin.Engine {
	return newUploadEnvWithPin(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v0/add":
			w.Write([]byte(`{"Hash":"QmUploaded"}`))
		case "/api/v0/pin/rm":
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func newUploadEnvWithPin(t *testing.T, pinHandler http.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	conf.Cfg = &conf.Config{}
	conf.Cfg.Pin.MaxFileSize = 1024 * 1024

	require.NoError(t, database.InitDatabase(database.DBTypePebble,
		&database.PebbleConfig{DataDir: t.TempDir()}))
	t.Cleanup(func() { database.DB.Close() })

	pinServer := httptest.NewServer(pinHandler)
	t.Cleanup(pinServer.Close)

	staging, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	pinClient := pin_service.NewPinClient(pinServer.URL, "", nil, 5*time.Second, 2*time.Second)
	gate := deal_service.NewPaymentGate("http://unused", "", "testnet", "FIL", 0.1, time.Second)
	fileHandler := NewFileHandler(pinClient, gate, staging)

	router := gin.New()
	router.Use(respond.TimingMiddleware())
	router.POST("/api/v1/files/upload", fileHandler.Upload)
	router.GET("/api/v1/files/:fileId", fileHandler.GetFile)
	router.GET("/api/v1/files/:fileId/content", fileHandler.GetContent)
	router.DELETE("/api/v1/files/:fileId", fileHandler.DeleteFile)

	return router
}

func multipartUpload(t *testing.T, owner string, content []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if owner != "" {
		require.NoError(t, writer.WriteField("ownerAddress", owner))
	}
	part, err := writer.CreateFormFile("file", "evidence.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadCreatesPinnedRecord(t *testing.T) {
	router := newUploadEnv(t)

	body, contentType := multipartUpload(t, "owner-1", []byte("evidence bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := gjson.GetBytes(w.Body.Bytes(), "data")
	assert.Equal(t, "QmUploaded", result.Get("file.cid").String())
	assert.Equal(t, "pinned", result.Get("file.pin_status").String())
	assert.Equal(t, "queued", result.Get("file.durable_status").String())
	assert.False(t, result.Get("duplicate").Bool())

	fileID := result.Get("file.file_id").String()
	require.NotEmpty(t, fileID)

	// Record is retrievable afterwards.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/"+fileID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadDuplicateReturnsExistingRecord(t *testing.T) {
	router := newUploadEnv(t)
	content := []byte("same bytes twice")

	body, contentType := multipartUpload(t, "owner-1", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	firstID := gjson.GetBytes(w.Body.Bytes(), "data.file.file_id").String()

	body, contentType = multipartUpload(t, "owner-2", content)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, gjson.GetBytes(w.Body.Bytes(), "data.duplicate").Bool())
	assert.Equal(t, firstID, gjson.GetBytes(w.Body.Bytes(), "data.file.file_id").String())
}

func TestReuploadRetriesFailedPin(t *testing.T) {
	var pinDown atomic.Bool
	pinDown.Store(true)
	router := newUploadEnvWithPin(t, func(w http.ResponseWriter, r *http.Request) {
		if pinDown.Load() {
			http.Error(w, "pin node down", http.StatusBadGateway)
			return
		}
		if r.URL.Path == "/api/v0/add" {
			w.Write([]byte(`{"Hash":"QmRecovered"}`))
			return
		}
		http.NotFound(w, r)
	})
	content := []byte("pinned on the second try")

	body, contentType := multipartUpload(t, "owner-1", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	result := gjson.GetBytes(w.Body.Bytes(), "data")
	require.Equal(t, "failed", result.Get("file.pin_status").String())
	firstID := result.Get("file.file_id").String()

	// Pin layer recovers; re-uploading the same bytes retries the pin
	// instead of handing back the stranded record.
	pinDown.Store(false)

	body, contentType = multipartUpload(t, "owner-1", content)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	result = gjson.GetBytes(w.Body.Bytes(), "data")
	assert.True(t, result.Get("duplicate").Bool())
	assert.Equal(t, firstID, result.Get("file.file_id").String())
	assert.Equal(t, "pinned", result.Get("file.pin_status").String())
	assert.Equal(t, "QmRecovered", result.Get("file.cid").String())
	assert.Empty(t, result.Get("file.pin_error").String())

	// The recovered state is persisted, not just echoed.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/"+firstID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pinned", gjson.GetBytes(w.Body.Bytes(), "data.pin_status").String())
}

func TestUploadRequiresOwner(t *testing.T) {
	router := newUploadEnv(t)

	body, contentType := multipartUpload(t, "", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetContentFallsBackToStaging(t *testing.T) {
	// No gateways configured: the pin download path fails and the staged
	// copy serves the bytes.
	router := newUploadEnv(t)
	content := []byte("staged evidence")

	body, contentType := multipartUpload(t, "owner-1", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	fileID := gjson.GetBytes(w.Body.Bytes(), "data.file.file_id").String()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/"+fileID+"/content", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
}

func TestDeleteRequiresMatchingOwner(t *testing.T) {
	router := newUploadEnv(t)

	body, contentType := multipartUpload(t, "owner-1", []byte("to delete"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	fileID := gjson.GetBytes(w.Body.Bytes(), "data.file.file_id").String()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+fileID+"?ownerAddress=intruder", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+fileID+"?ownerAddress=owner-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/"+fileID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
