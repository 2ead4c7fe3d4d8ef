package audit_service

import (
	"fmt"
	"log"
	"regexp"
	"sync"

	"evidence-vault/database"
)

// topic ids look like 0.0.12345
var topicIDPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

const topicCacheKey = "audit:topic_id"

// TopicRegistry resolves the audit topic exactly once per deployment.
// Resolution order: configured override, process memo, cache, then a fresh
// topic on the ledger. The cached id never expires: losing it would strand
// prior audit entries under an unreachable topic.
type TopicRegistry struct {
	mu      sync.Mutex
	topicID string
	client  *LedgerClient
	memo    string
}

// NewTopicRegistry create topic registry. explicitID, when set, pins the
// registry to an existing topic and must be well formed.
func NewTopicRegistry(client *LedgerClient, explicitID, memo string) (*TopicRegistry, error) {
	if explicitID != "" && !topicIDPattern.MatchString(explicitID) {
		return nil, fmt.Errorf("malformed topic id %q, want shard.realm.num", explicitID)
	}
	return &TopicRegistry{
		topicID: explicitID,
		client:  client,
		memo:    memo,
	}, nil
}

// GetOrCreateTopic returns the deployment's audit topic id, creating the
// topic on first use. Safe for concurrent callers; only one of them ever
// performs the create.
func (r *TopicRegistry) GetOrCreateTopic() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.topicID != "" {
		return r.topicID, nil
	}

	var cached string
	if err := database.GetCache(topicCacheKey, &cached); err == nil && topicIDPattern.MatchString(cached) {
		r.topicID = cached
		log.Printf("Reusing cached audit topic %s", cached)
		return cached, nil
	}

	topicID, err := r.client.CreateTopic(r.memo)
	if err != nil {
		return "", err
	}

	// Best effort: a cache miss next boot just creates another topic.
	if err := database.SetCachePersistent(topicCacheKey, topicID); err != nil {
		log.Printf("⚠️  Failed to cache audit topic id: %v", err)
	}

	r.topicID = topicID
	return topicID, nil
}
