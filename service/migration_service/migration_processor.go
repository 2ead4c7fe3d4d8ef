package migration_service

import (
	"log"
	"time"

	"evidence-vault/model"
)

// MigrationProcessor drains pinned, queued records in the background. Only
// queued records are picked up here: failed records wait for an explicit
// retry request and are never touched by the timer.
type MigrationProcessor struct {
	service  *MigrationService
	interval time.Duration
	stopChan chan struct{}
}

func NewMigrationProcessor(service *MigrationService, interval time.Duration) *MigrationProcessor {
	return &MigrationProcessor{
		service:  service,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launch the background migration loop
func (p *MigrationProcessor) Start() {
	log.Printf("🚀 Migration processor started, interval: %v", p.interval)
	go p.run()
}

// Stop signal the loop to exit after the current pass
func (p *MigrationProcessor) Stop() {
	close(p.stopChan)
	log.Println("Migration processor stopped")
}

func (p *MigrationProcessor) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.processPending()
		}
	}
}

func (p *MigrationProcessor) processPending() {
	outcomes := p.service.ProcessQueuedBatch()
	if len(outcomes) == 0 {
		return
	}

	completed := 0
	for _, outcome := range outcomes {
		if outcome.Status == model.DurableStatusCompleted {
			completed++
		}
	}

	backlog, err := p.service.QueuedBacklog()
	if err != nil {
		log.Printf("Failed to count queued backlog: %v", err)
	}
	log.Printf("Migration pass: processed=%d completed=%d backlog=%d", len(outcomes), completed, backlog)
}
