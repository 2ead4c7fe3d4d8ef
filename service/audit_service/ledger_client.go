package audit_service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/imroc/req"
	"github.com/tidwall/gjson"
)

// LedgerClient submits to the public consensus ledger through its node API.
// Reads never come through here; they go to the mirror (see verifier.go).
type LedgerClient struct {
	nodeURL    string
	operatorID string
	client     *req.Req
}

// SubmitResult receipt of one accepted ledger submission
type SubmitResult struct {
	SubmissionRef      string `json:"submissionRef"`
	ConsensusTimestamp string `json:"consensusTimestamp,omitempty"`
}

// NewLedgerClient create consensus ledger client
func NewLedgerClient(nodeURL, operatorID string, timeout time.Duration) *LedgerClient {
	client := req.New()
	client.SetTimeout(timeout)

	return &LedgerClient{
		nodeURL:    strings.TrimRight(nodeURL, "/"),
		operatorID: operatorID,
		client:     client,
	}
}

func (c *LedgerClient) header() req.Header {
	return req.Header{
		"Accept":            "application/json",
		"X-Ledger-Operator": c.operatorID,
	}
}

// CreateTopic registers a new append-only topic and returns its identifier.
func (c *LedgerClient) CreateTopic(memo string) (string, error) {
	resp, err := c.client.Post(c.nodeURL+"/api/v1/topics", c.header(), req.BodyJSON(map[string]string{
		"memo":       memo,
		"operatorId": c.operatorID,
	}))
	if err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return "", fmt.Errorf("read create topic response: %w", err)
	}
	if code := resp.Response().StatusCode; code < 200 || code >= 300 {
		return "", fmt.Errorf("create topic failed with status %d: %s", code, string(body))
	}

	topicID := gjson.GetBytes(body, "topicId").String()
	if topicID == "" {
		return "", errors.New("create topic response missing topicId")
	}

	log.Printf("📒 Created ledger topic %s (memo: %s)", topicID, memo)
	return topicID, nil
}

// SubmitMessage appends one payload to the topic. The payload travels
// base64-encoded, matching what the mirror later returns.
func (c *LedgerClient) SubmitMessage(topicID string, payload []byte) (*SubmitResult, error) {
	if topicID == "" {
		return nil, errors.New("topic id is empty")
	}

	url := fmt.Sprintf("%s/api/v1/topics/%s/messages", c.nodeURL, topicID)
	resp, err := c.client.Post(url, c.header(), req.BodyJSON(map[string]string{
		"message": base64.StdEncoding.EncodeToString(payload),
	}))
	if err != nil {
		return nil, fmt.Errorf("submit message: %w", err)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("read submit response: %w", err)
	}
	if code := resp.Response().StatusCode; code < 200 || code >= 300 {
		return nil, fmt.Errorf("submit message failed with status %d: %s", code, string(body))
	}

	ref := gjson.GetBytes(body, "transactionId").String()
	if ref == "" {
		return nil, errors.New("submit response missing transactionId")
	}

	return &SubmitResult{
		SubmissionRef:      ref,
		ConsensusTimestamp: gjson.GetBytes(body, "consensusTimestamp").String(),
	}, nil
}
