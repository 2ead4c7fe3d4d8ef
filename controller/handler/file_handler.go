package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"evidence-vault/common"
	"evidence-vault/conf"
	"evidence-vault/controller/respond"
	"evidence-vault/database"
	"evidence-vault/model"
	"evidence-vault/model/dao"
	"evidence-vault/service/deal_service"
	"evidence-vault/service/pin_service"
	"evidence-vault/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FileHandler handles the file record API surface
type FileHandler struct {
	fileDAO    *dao.FileRecordDAO
	paymentDAO *dao.PaymentLedgerDAO
	pinClient  *pin_service.PinClient
	gate       *deal_service.PaymentGate
	staging    storage.Storage
}

func NewFileHandler(pinClient *pin_service.PinClient, gate *deal_service.PaymentGate, staging storage.Storage) *FileHandler {
	return &FileHandler{
		fileDAO:    dao.NewFileRecordDAO(),
		paymentDAO: dao.NewPaymentLedgerDAO(),
		pinClient:  pinClient,
		gate:       gate,
		staging:    staging,
	}
}

// Upload accepts a multipart file, stages it, pins it and creates the
// record. The durable migration runs later, in the background.
// POST /api/v1/files/upload
func (h *FileHandler) Upload(c *gin.Context) {
	owner := strings.TrimSpace(c.PostForm("ownerAddress"))
	if owner == "" {
		respond.InvalidParam(c, "ownerAddress is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.InvalidParam(c, "file is required")
		return
	}
	if maxSize := conf.Cfg.Pin.MaxFileSize; maxSize > 0 && fileHeader.Size > maxSize {
		respond.InvalidParam(c, fmt.Sprintf("file exceeds size limit of %d bytes", maxSize))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		respond.ServerError(c, "failed to open uploaded file")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		respond.ServerError(c, "failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		respond.InvalidParam(c, "file is empty")
		return
	}

	var tags map[string]interface{}
	if raw := c.PostForm("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			respond.InvalidParam(c, "tags must be a JSON object")
			return
		}
	}
	tags = common.SanitizeMetadata(tags)

	digest := common.Sha256Hex(data)
	if existing, err := h.fileDAO.GetByDigest(digest); err == nil {
		// Same bytes, same record. A re-upload of content whose first pin
		// failed doubles as the pin retry: a failed pin is a transient
		// fault of the pin layer, not a property of the bytes, and the
		// migration pipeline only picks up pinned records.
		if existing.PinStatus == model.PinStatusFailed {
			h.retryPin(existing, data, tags)
		}
		log.Printf("Duplicate upload detected: hash=%s... existing file=%s", digest[:12], existing.FileId)
		respond.Success(c, gin.H{"file": existing, "duplicate": true})
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		respond.ServerError(c, "record store lookup failed")
		return
	}

	fileID := uuid.New().String()
	stagingKey := fmt.Sprintf("%s/%s", owner, fileID)
	if err := h.staging.Save(stagingKey, data); err != nil {
		respond.ServerError(c, "failed to stage file: "+err.Error())
		return
	}

	tagJSON, _ := json.Marshal(tags)
	record := &model.FileRecord{
		FileId:        fileID,
		OwnerAddress:  owner,
		FileHash:      digest,
		PinStatus:     model.PinStatusQueued,
		DurableStatus: model.DurableStatusQueued,
		FileName:      fileHeader.Filename,
		FileSize:      int64(len(data)),
		ContentType:   fileHeader.Header.Get("Content-Type"),
		Tags:          string(tagJSON),
		StoragePath:   stagingKey,
	}

	result, pinErr := h.pinClient.Upload(data, fileHeader.Filename, tags)
	if pinErr != nil {
		record.PinStatus = model.PinStatusFailed
		record.PinError = pinErr.Error()
		log.Printf("⚠️  Pin failed for %s: %v", fileID, pinErr)
	} else {
		record.Cid = result.Cid
		record.PinStatus = model.PinStatusPinned
	}

	if err := h.fileDAO.Create(record); err != nil {
		respond.ServerError(c, "failed to create record: "+err.Error())
		return
	}

	log.Printf("📦 File uploaded: id=%s owner=%s size=%d pin=%s", fileID, owner, record.FileSize, record.PinStatus)
	respond.Success(c, gin.H{"file": record, "duplicate": false})
}

// retryPin re-pins a record stuck in pin failed, using the bytes of the
// current upload. Persists on success so the migration pipeline can pick
// the record up; on failure the record keeps waiting for the next upload.
func (h *FileHandler) retryPin(record *model.FileRecord, data []byte, tags map[string]interface{}) {
	result, err := h.pinClient.Upload(data, record.FileName, tags)
	if err != nil {
		record.PinError = err.Error()
		if updateErr := h.fileDAO.Update(record); updateErr != nil {
			log.Printf("⚠️  Failed to persist pin error for %s: %v", record.FileId, updateErr)
		}
		log.Printf("⚠️  Pin retry failed for %s: %v", record.FileId, err)
		return
	}

	record.Cid = result.Cid
	record.PinStatus = model.PinStatusPinned
	record.PinError = ""
	if err := h.fileDAO.Update(record); err != nil {
		log.Printf("⚠️  Pin retry succeeded but record update failed for %s: %v", record.FileId, err)
		return
	}
	log.Printf("📦 Pin recovered on re-upload: id=%s cid=%s", record.FileId, result.Cid)
}

// GetFile returns one record by its opaque id.
// GET /api/v1/files/:fileId
func (h *FileHandler) GetFile(c *gin.Context) {
	record, err := h.fileDAO.GetByFileID(c.Param("fileId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respond.NotFound(c, "file not found")
			return
		}
		respond.ServerError(c, "record store lookup failed")
		return
	}
	respond.Success(c, record)
}

// ListFiles cursor-paginated listing, filterable by owner and durable status.
// GET /api/v1/files
func (h *FileHandler) ListFiles(c *gin.Context) {
	cursor, _ := strconv.ParseInt(c.DefaultQuery("cursor", "0"), 10, 64)
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	records, next, err := h.fileDAO.ListWithCursor(c.Query("owner"), c.Query("status"), cursor, size)
	if err != nil {
		respond.ServerError(c, "failed to list records")
		return
	}
	respond.Success(c, gin.H{
		"files":      records,
		"nextCursor": next,
	})
}

// GetContent streams the raw bytes back. The pin layer's gateway chain is
// tried first; the staging store is the last-resort read path.
// GET /api/v1/files/:fileId/content
func (h *FileHandler) GetContent(c *gin.Context) {
	record, err := h.fileDAO.GetByFileID(c.Param("fileId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respond.NotFound(c, "file not found")
			return
		}
		respond.ServerError(c, "record store lookup failed")
		return
	}

	var data []byte
	if record.Cid != "" {
		data, err = h.pinClient.Download(record.Cid)
		if err != nil {
			log.Printf("Gateway download failed for %s, falling back to staging: %v", record.FileId, err)
		}
	}
	if data == nil {
		data, err = h.staging.Get(record.StoragePath)
		if err != nil {
			respond.ServerError(c, "content unavailable from all read paths")
			return
		}
	}

	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.FileName))
	c.Data(200, contentType, data)
}

// ListPayments returns the append-only payment trail of one record.
// GET /api/v1/files/:fileId/payments
func (h *FileHandler) ListPayments(c *gin.Context) {
	fileID := c.Param("fileId")
	if _, err := h.fileDAO.GetByFileID(fileID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respond.NotFound(c, "file not found")
			return
		}
		respond.ServerError(c, "record store lookup failed")
		return
	}

	entries, err := h.paymentDAO.ListByFileID(fileID)
	if err != nil {
		respond.ServerError(c, "failed to list payment entries")
		return
	}
	respond.Success(c, gin.H{"payments": entries})
}

// DeleteFile removes the record plus its staged copy and best-effort unpins
// the content. Durable network copies are not recalled; deals run their term.
// DELETE /api/v1/files/:fileId
func (h *FileHandler) DeleteFile(c *gin.Context) {
	record, err := h.fileDAO.GetByFileID(c.Param("fileId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respond.NotFound(c, "file not found")
			return
		}
		respond.ServerError(c, "record store lookup failed")
		return
	}

	owner := strings.TrimSpace(c.Query("ownerAddress"))
	if owner == "" || owner != record.OwnerAddress {
		respond.InvalidParam(c, "ownerAddress does not match record owner")
		return
	}

	if record.Cid != "" {
		if err := h.pinClient.Unpin(record.Cid); err != nil {
			log.Printf("⚠️  Unpin failed for %s: %v", record.Cid, err)
		}
	}
	if record.StoragePath != "" {
		if err := h.staging.Delete(record.StoragePath); err != nil {
			log.Printf("⚠️  Staging delete failed for %s: %v", record.StoragePath, err)
		}
	}

	if err := h.fileDAO.Delete(record.FileId); err != nil {
		respond.ServerError(c, "failed to delete record")
		return
	}
	respond.Success(c, gin.H{"deleted": record.FileId})
}

// GateStatus reports the live payment gate readiness for an owner.
// GET /api/v1/gate/status
func (h *FileHandler) GateStatus(c *gin.Context) {
	owner := strings.TrimSpace(c.Query("ownerAddress"))
	if owner == "" {
		respond.InvalidParam(c, "ownerAddress is required")
		return
	}

	status, err := h.gate.CheckStatus(owner)
	if err != nil {
		// Balance service unreachable. Report the last observed readiness
		// so the status endpoint stays useful during gate outages;
		// migrations always re-check live and are unaffected by this.
		respond.Success(c, gin.H{
			"stale":          true,
			"lastKnownReady": h.gate.WasReady(owner),
			"error":          err.Error(),
		})
		return
	}
	respond.Success(c, status)
}

// GateSetUp attempts to bring an owner's payment account to readiness.
// POST /api/v1/gate/setup
func (h *FileHandler) GateSetUp(c *gin.Context) {
	var body struct {
		OwnerAddress string `json:"ownerAddress"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.OwnerAddress) == "" {
		respond.InvalidParam(c, "ownerAddress is required")
		return
	}

	result, err := h.gate.SetUp(body.OwnerAddress)
	if err != nil {
		respond.ServerError(c, "gate setup failed: "+err.Error())
		return
	}
	respond.Success(c, result)
}
