package audit_service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"evidence-vault/common"
)

const auditSchemaVersion = 1

var ErrEmptyText = errors.New("audit text is empty")

// AuditEnvelope is the structure actually written to the ledger. It carries
// the digest and nothing else: the raw text never leaves the process.
type AuditEnvelope struct {
	Type      string `json:"type"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
	Length    int    `json:"length"`
	Version   int    `json:"version"`
}

// AuditReceipt what the caller gets back after a successful submission
type AuditReceipt struct {
	Digest             string `json:"hash"`
	TopicId            string `json:"topicId"`
	SubmissionRef      string `json:"submissionRef"`
	Timestamp          string `json:"timestamp"`
	ConsensusTimestamp string `json:"consensusTimestamp,omitempty"`
}

// AuditService digests free-form session text and anchors the digest on the
// public ledger. Submission is synchronous: the caller holds the receipt
// before the call returns.
type AuditService struct {
	registry *TopicRegistry
	client   *LedgerClient
}

func NewAuditService(registry *TopicRegistry, client *LedgerClient) *AuditService {
	return &AuditService{
		registry: registry,
		client:   client,
	}
}

// LogText anchors the SHA-256 digest of text on the audit topic. The text
// itself is discarded after digesting. Repeated calls with identical text
// produce identical digests but distinct ledger entries, each with its own
// submission reference.
func (s *AuditService) LogText(text string) (*AuditReceipt, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	digest := common.Sha256HexString(text)
	now := time.Now().UTC().Format(time.RFC3339)

	envelope := AuditEnvelope{
		Type:      "session_audit",
		Hash:      digest,
		Timestamp: now,
		Length:    len(text),
		Version:   auditSchemaVersion,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal audit envelope: %w", err)
	}

	topicID, err := s.registry.GetOrCreateTopic()
	if err != nil {
		return nil, fmt.Errorf("resolve audit topic: %w", err)
	}

	result, err := s.client.SubmitMessage(topicID, payload)
	if err != nil {
		return nil, err
	}

	log.Printf("📝 Audit entry anchored: topic=%s ref=%s hash=%s...", topicID, result.SubmissionRef, digest[:12])

	return &AuditReceipt{
		Digest:             digest,
		TopicId:            topicID,
		SubmissionRef:      result.SubmissionRef,
		Timestamp:          now,
		ConsensusTimestamp: result.ConsensusTimestamp,
	}, nil
}
