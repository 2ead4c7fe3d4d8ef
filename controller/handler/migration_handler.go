package handler

import (
	"errors"

	"evidence-vault/controller/respond"
	"evidence-vault/database"
	"evidence-vault/service/migration_service"

	"github.com/gin-gonic/gin"
)

// MigrationHandler exposes the durable migration controls
type MigrationHandler struct {
	service *migration_service.MigrationService
}

func NewMigrationHandler(service *migration_service.MigrationService) *MigrationHandler {
	return &MigrationHandler{service: service}
}

// Migrate runs one migration attempt for one record, synchronously.
// POST /api/v1/migrations/:fileId
func (h *MigrationHandler) Migrate(c *gin.Context) {
	record, outcome, err := h.service.MigrateByFileID(c.Param("fileId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respond.NotFound(c, "file not found")
			return
		}
		respond.ServerError(c, "record store lookup failed")
		return
	}
	respond.Success(c, gin.H{
		"file":    record,
		"outcome": outcome,
	})
}

// RetryFailed replays failed and stalled records. The batch itself always
// succeeds; per-record results are in the report.
// POST /api/v1/migrations/retry
func (h *MigrationHandler) RetryFailed(c *gin.Context) {
	report := h.service.RetryFailed()
	respond.Success(c, report)
}
