package migration_service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"evidence-vault/model"
	"evidence-vault/model/dao"
	"evidence-vault/service/deal_service"
)

// Migrator is the slice of the deal client the orchestrator drives.
type Migrator interface {
	Migrate(fileID, owner, cid string, metadata map[string]interface{}) (*deal_service.DealResult, error)
}

// GateChecker is the slice of the payment gate the orchestrator consults
// before committing a record to an attempt.
type GateChecker interface {
	CheckStatus(owner string) (*deal_service.GateStatus, error)
}

// MigrationOutcome per-record result of one migration attempt. Batch
// operations report these instead of failing wholesale: partial failure
// across a batch is expected, not exceptional.
type MigrationOutcome struct {
	FileId            string              `json:"fileId"`
	Status            model.DurableStatus `json:"status"`
	PieceId           string              `json:"pieceId,omitempty"`
	DealId            string              `json:"dealId,omitempty"`
	AttemptCount      int                 `json:"attemptCount"`
	Error             string              `json:"error,omitempty"`
	InsufficientFunds bool                `json:"insufficientFunds,omitempty"`
	Blocked           bool                `json:"blocked,omitempty"`
}

// RetryReport summary of one explicit retry batch. Blocked counts records
// the gate held back without an attempt: those need a top-up, not another
// retry, and are reported apart from genuine failures.
type RetryReport struct {
	Scanned   int                 `json:"scanned"`
	Reclaimed int                 `json:"reclaimed"`
	Succeeded int                 `json:"succeeded"`
	Blocked   int                 `json:"blocked"`
	Failed    int                 `json:"failed"`
	Outcomes  []*MigrationOutcome `json:"outcomes"`
}

// MigrationService drives file records through the durable status machine:
// queued -> uploading -> {completed, failed}, with failed -> uploading on
// explicit retry. completed is terminal.
type MigrationService struct {
	fileDAO          *dao.FileRecordDAO
	migrator         Migrator
	gate             GateChecker
	batchSize        int
	stalledThreshold time.Duration
}

// NewMigrationService create migration orchestrator
func NewMigrationService(migrator Migrator, gate GateChecker, batchSize int, stalledThreshold time.Duration) *MigrationService {
	return &MigrationService{
		fileDAO:          dao.NewFileRecordDAO(),
		migrator:         migrator,
		gate:             gate,
		batchSize:        batchSize,
		stalledThreshold: stalledThreshold,
	}
}

// ProcessRecord runs one migration attempt for one record, writing every
// state transition through the record store. It never returns an error:
// failures land in the record's durable status and lastError.
func (s *MigrationService) ProcessRecord(record *model.FileRecord) *MigrationOutcome {
	outcome := &MigrationOutcome{FileId: record.FileId}

	if record.DurableStatus == model.DurableStatusCompleted {
		// Terminal. Nothing may move a completed record.
		outcome.Status = model.DurableStatusCompleted
		outcome.PieceId = record.PieceId
		outcome.DealId = record.DealId
		outcome.AttemptCount = record.AttemptCount
		return outcome
	}

	if record.PinStatus != model.PinStatusPinned {
		// Durable status may not leave queued before the pin layer holds
		// the content. Not an error; the record just waits.
		outcome.Status = record.DurableStatus
		outcome.AttemptCount = record.AttemptCount
		outcome.Error = "content not pinned yet"
		return outcome
	}

	if !model.CanTransition(record.DurableStatus, model.DurableStatusUploading) {
		outcome.Status = record.DurableStatus
		outcome.AttemptCount = record.AttemptCount
		outcome.Error = "record not eligible for migration from status " + string(record.DurableStatus)
		return outcome
	}

	// Gate check before the record commits to an attempt. An unfunded owner
	// must not burn attempts or move records out of their current status;
	// the record waits where it is until the balance is topped up.
	gateStatus, err := s.gate.CheckStatus(record.OwnerAddress)
	if err != nil {
		outcome.Status = record.DurableStatus
		outcome.AttemptCount = record.AttemptCount
		outcome.Error = "gate check: " + err.Error()
		outcome.Blocked = true
		return outcome
	}
	if !gateStatus.IsReady {
		outcome.Status = record.DurableStatus
		outcome.AttemptCount = record.AttemptCount
		outcome.Error = fmt.Sprintf("balance %v %s below minimum %v",
			gateStatus.Balance, gateStatus.TokenKind, gateStatus.MinimumRequired)
		outcome.InsufficientFunds = true
		outcome.Blocked = true
		return outcome
	}

	now := time.Now()
	record.DurableStatus = model.DurableStatusUploading
	record.LastAttemptAt = &now
	record.AttemptCount++
	if err := s.fileDAO.Update(record); err != nil {
		outcome.Status = record.DurableStatus
		outcome.AttemptCount = record.AttemptCount
		outcome.Error = "record store: " + err.Error()
		return outcome
	}

	result, err := s.migrator.Migrate(record.FileId, record.OwnerAddress, record.Cid, parseTags(record.Tags))
	if err != nil {
		record.DurableStatus = model.DurableStatusFailed
		record.LastError = err.Error()
		if updateErr := s.fileDAO.Update(record); updateErr != nil {
			log.Printf("⚠️  Failed to persist failed status for %s: %v", record.FileId, updateErr)
		}
		outcome.Status = model.DurableStatusFailed
		outcome.AttemptCount = record.AttemptCount
		outcome.Error = err.Error()
		outcome.InsufficientFunds = errors.Is(err, deal_service.ErrInsufficientFunds)
		return outcome
	}

	record.PieceId = result.PieceId
	record.DealId = result.DealId
	record.DealProvider = result.Provider
	record.DealPath = result.Path
	record.DurableStatus = model.DurableStatusCompleted
	record.LastError = ""
	if err := s.fileDAO.Update(record); err != nil {
		// The deal exists on the network even if the local write failed.
		log.Printf("⚠️  Deal %s committed but record update failed for %s: %v", result.DealId, record.FileId, err)
		outcome.Status = model.DurableStatusUploading
		outcome.AttemptCount = record.AttemptCount
		outcome.Error = "record store: " + err.Error()
		return outcome
	}

	log.Printf("Migration completed: file=%s piece=%s deal=%s path=%s attempt=%d",
		record.FileId, result.PieceId, result.DealId, result.Path, record.AttemptCount)

	outcome.Status = model.DurableStatusCompleted
	outcome.PieceId = result.PieceId
	outcome.DealId = result.DealId
	outcome.AttemptCount = record.AttemptCount
	return outcome
}

// MigrateByFileID triggers a migration for one record.
func (s *MigrationService) MigrateByFileID(fileID string) (*model.FileRecord, *MigrationOutcome, error) {
	record, err := s.fileDAO.GetByFileID(fileID)
	if err != nil {
		return nil, nil, err
	}
	outcome := s.ProcessRecord(record)
	return record, outcome, nil
}

// ProcessQueuedBatch drives pinned, still-queued records forward. Records
// are processed strictly sequentially: each record runs to completion or
// failure before the next starts, so concurrent deductions against one
// owner's shared gate balance cannot interleave.
func (s *MigrationService) ProcessQueuedBatch() []*MigrationOutcome {
	records, err := s.fileDAO.GetMigratable(s.batchSize)
	if err != nil {
		log.Printf("Failed to select migratable records: %v", err)
		return nil
	}

	var outcomes []*MigrationOutcome
	for _, record := range records {
		outcomes = append(outcomes, s.ProcessRecord(record))
	}
	return outcomes
}

// RetryFailed is the explicit, externally triggered retry batch. It selects
// every failed record plus stalled uploading records (lastAttemptAt older
// than the stale threshold, crash or deadline leftovers) and replays the
// normal transition logic sequentially. There is no timer behind this:
// during a systemic outage retries happen exactly as often as an operator
// asks for them.
func (s *MigrationService) RetryFailed() *RetryReport {
	report := &RetryReport{}

	failed, err := s.fileDAO.GetFailed(s.batchSize)
	if err != nil {
		log.Printf("Failed to select failed records: %v", err)
		return report
	}

	before := time.Now().Add(-s.stalledThreshold)
	stalled, err := s.fileDAO.GetStalledUploading(before, s.batchSize)
	if err != nil {
		log.Printf("Failed to select stalled records: %v", err)
	}

	seen := make(map[string]bool, len(failed))
	batch := make([]*model.FileRecord, 0, len(failed)+len(stalled))
	for _, record := range failed {
		seen[record.FileId] = true
		batch = append(batch, record)
	}
	for _, record := range stalled {
		if seen[record.FileId] {
			continue
		}
		// Reclaim: a stalled uploading record is treated as failed before
		// it re-enters the machine, keeping transitions legal.
		record.DurableStatus = model.DurableStatusFailed
		if record.LastError == "" {
			record.LastError = "reclaimed: uploading since " + record.LastAttemptAt.Format(time.RFC3339)
		}
		if err := s.fileDAO.Update(record); err != nil {
			log.Printf("⚠️  Failed to reclaim stalled record %s: %v", record.FileId, err)
			continue
		}
		report.Reclaimed++
		batch = append(batch, record)
	}

	report.Scanned = len(batch)
	for _, record := range batch {
		outcome := s.ProcessRecord(record)
		report.Outcomes = append(report.Outcomes, outcome)
		switch {
		case outcome.Status == model.DurableStatusCompleted:
			report.Succeeded++
		case outcome.Blocked:
			report.Blocked++
		default:
			report.Failed++
		}
	}

	log.Printf("Retry batch finished: scanned=%d reclaimed=%d succeeded=%d blocked=%d failed=%d",
		report.Scanned, report.Reclaimed, report.Succeeded, report.Blocked, report.Failed)
	return report
}

// QueuedBacklog reports how many records still wait in queued. Fed into the
// processor's periodic log so operators can watch the backlog drain.
func (s *MigrationService) QueuedBacklog() (int64, error) {
	return s.fileDAO.Count(string(model.DurableStatusQueued))
}

// parseTags decodes the sanitized tag JSON stored on the record.
func parseTags(tags string) map[string]interface{} {
	if tags == "" {
		return nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(tags), &meta); err != nil {
		log.Printf("Failed to parse record tags: %v", err)
		return nil
	}
	return meta
}
