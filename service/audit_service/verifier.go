package audit_service

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/imroc/req"
	"github.com/tidwall/gjson"
)

// MirrorVerifier reads the ledger back through its mirror API. The mirror
// is eventually consistent, so verification polls: a miss on one attempt
// means "not propagated yet", not "absent".
type MirrorVerifier struct {
	mirrorURL string
	client    *req.Req
	pageSize  int
	sleep     func(time.Duration)
}

// VerifyResult outcome of one verification run
type VerifyResult struct {
	Verified           bool   `json:"verified"`
	SequenceNumber     int64  `json:"sequenceNumber,omitempty"`
	ConsensusTimestamp string `json:"consensusTimestamp,omitempty"`
	Attempt            int    `json:"attempt"`
	Reason             string `json:"reason,omitempty"`
}

// NewMirrorVerifier create mirror read client
func NewMirrorVerifier(mirrorURL string, timeout time.Duration) *MirrorVerifier {
	client := req.New()
	client.SetTimeout(timeout)

	return &MirrorVerifier{
		mirrorURL: strings.TrimRight(mirrorURL, "/"),
		client:    client,
		pageSize:  25,
		sleep:     time.Sleep,
	}
}

// Verify polls the mirror until an entry carrying digest appears on
// topicID, up to maxAttempts with interval between attempts. The interval
// also runs after the last miss, so total wait is maxAttempts * interval.
// A negative result only means the mirror has not caught up within the
// window; the submission itself remains durable on the ledger.
func (v *MirrorVerifier) Verify(topicID, digest string, maxAttempts int, interval time.Duration) *VerifyResult {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		seq, ts, err := v.scanTopic(topicID, digest)
		if err != nil {
			log.Printf("Mirror scan attempt %d/%d failed: %v", attempt, maxAttempts, err)
		} else if seq > 0 {
			log.Printf("✅ Audit entry verified on mirror: topic=%s seq=%d attempt=%d", topicID, seq, attempt)
			return &VerifyResult{
				Verified:           true,
				SequenceNumber:     seq,
				ConsensusTimestamp: ts,
				Attempt:            attempt,
			}
		}
		v.sleep(interval)
	}

	return &VerifyResult{
		Verified: false,
		Attempt:  maxAttempts,
		Reason: fmt.Sprintf("digest not visible on mirror after %d attempts; "+
			"the ledger submission itself remains durable", maxAttempts),
	}
}

// scanTopic fetches the newest page of topic messages and looks for an
// envelope whose hash matches digest. Returns sequence 0 on no match.
func (v *MirrorVerifier) scanTopic(topicID, digest string) (int64, string, error) {
	url := fmt.Sprintf("%s/api/v1/topics/%s/messages", v.mirrorURL, topicID)
	resp, err := v.client.Get(url, req.Param{
		"limit": v.pageSize,
		"order": "desc",
	})
	if err != nil {
		return 0, "", fmt.Errorf("query mirror: %w", err)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return 0, "", fmt.Errorf("read mirror response: %w", err)
	}
	if code := resp.Response().StatusCode; code < 200 || code >= 300 {
		return 0, "", fmt.Errorf("mirror returned status %d: %s", code, string(body))
	}

	var foundSeq int64
	var foundTs string
	gjson.GetBytes(body, "messages").ForEach(func(_, message gjson.Result) bool {
		raw, err := base64.StdEncoding.DecodeString(message.Get("message").String())
		if err != nil {
			return true
		}
		if gjson.GetBytes(raw, "hash").String() != digest {
			return true
		}
		foundSeq = message.Get("sequence_number").Int()
		foundTs = message.Get("consensus_timestamp").String()
		return false
	})

	return foundSeq, foundTs, nil
}
