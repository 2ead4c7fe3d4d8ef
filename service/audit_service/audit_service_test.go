package audit_service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evidence-vault/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerServer(t *testing.T, submissions *[][]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/topics":
			w.Write([]byte(`{"topicId":"0.0.4810"}`))
		case "/api/v1/topics/0.0.4810/messages":
			body, _ := io.ReadAll(r.Body)
			raw, err := base64.StdEncoding.DecodeString(gjsonMessage(body))
			require.NoError(t, err)
			*submissions = append(*submissions, raw)
			fmt.Fprintf(w, `{"transactionId":"0.0.1001@%d.%d","consensusTimestamp":"1756400000.000000001"}`,
				time.Now().Unix(), len(*submissions))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
}

func gjsonMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return payload.Message
}

func newAuditEnv(t *testing.T, server *httptest.Server, explicitTopic string) *AuditService {
	client := NewLedgerClient(server.URL, "0.0.1001", 5*time.Second)
	registry, err := NewTopicRegistry(client, explicitTopic, "session audit")
	require.NoError(t, err)
	return NewAuditService(registry, client)
}

func TestLogTextAnchorsDigest(t *testing.T) {
	var submissions [][]byte
	server := newLedgerServer(t, &submissions)
	defer server.Close()

	service := newAuditEnv(t, server, "0.0.4810")
	text := "client session: reviewed evidence bundle 42"

	receipt, err := service.LogText(text)
	require.NoError(t, err)

	assert.Equal(t, common.Sha256HexString(text), receipt.Digest)
	assert.Len(t, receipt.Digest, 64)
	assert.Equal(t, "0.0.4810", receipt.TopicId)
	assert.NotEmpty(t, receipt.SubmissionRef)

	// The envelope on the wire carries the digest, never the text.
	require.Len(t, submissions, 1)
	var envelope AuditEnvelope
	require.NoError(t, json.Unmarshal(submissions[0], &envelope))
	assert.Equal(t, "session_audit", envelope.Type)
	assert.Equal(t, receipt.Digest, envelope.Hash)
	assert.Equal(t, len(text), envelope.Length)
	assert.Equal(t, auditSchemaVersion, envelope.Version)
	assert.NotContains(t, string(submissions[0]), "evidence bundle")
}

func TestLogTextRepeatedEntriesAreDistinct(t *testing.T) {
	var submissions [][]byte
	server := newLedgerServer(t, &submissions)
	defer server.Close()

	service := newAuditEnv(t, server, "0.0.4810")

	first, err := service.LogText("identical text")
	require.NoError(t, err)
	second, err := service.LogText("identical text")
	require.NoError(t, err)

	// Same digest, separate ledger entries.
	assert.Equal(t, first.Digest, second.Digest)
	assert.NotEqual(t, first.SubmissionRef, second.SubmissionRef)
	assert.Len(t, submissions, 2)
}

func TestLogTextRejectsEmpty(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	service := newAuditEnv(t, server, "0.0.4810")

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := service.LogText(text)
		assert.ErrorIs(t, err, ErrEmptyText)
	}
}

func TestTopicRegistryCreatesOnce(t *testing.T) {
	var creates int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/topics", r.URL.Path)
		creates++
		w.Write([]byte(`{"topicId":"0.0.5555"}`))
	}))
	defer server.Close()

	client := NewLedgerClient(server.URL, "0.0.1001", 5*time.Second)
	registry, err := NewTopicRegistry(client, "", "session audit")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		topicID, err := registry.GetOrCreateTopic()
		require.NoError(t, err)
		assert.Equal(t, "0.0.5555", topicID)
	}
	assert.Equal(t, 1, creates)
}

func TestTopicRegistryRejectsMalformedOverride(t *testing.T) {
	client := NewLedgerClient("http://unused", "0.0.1001", time.Second)

	_, err := NewTopicRegistry(client, "not-a-topic", "memo")
	assert.Error(t, err)

	_, err = NewTopicRegistry(client, "0.0.4810", "memo")
	assert.NoError(t, err)
}
