package handler

import (
	"errors"
	"time"

	"evidence-vault/conf"
	"evidence-vault/controller/respond"
	"evidence-vault/service/audit_service"

	"github.com/gin-gonic/gin"
)

// AuditHandler exposes the session audit surface
type AuditHandler struct {
	audit    *audit_service.AuditService
	registry *audit_service.TopicRegistry
	verifier *audit_service.MirrorVerifier
}

func NewAuditHandler(audit *audit_service.AuditService, registry *audit_service.TopicRegistry,
	verifier *audit_service.MirrorVerifier) *AuditHandler {
	return &AuditHandler{
		audit:    audit,
		registry: registry,
		verifier: verifier,
	}
}

// LogSession digests the posted session text and anchors the digest on the
// ledger. With enableVerification the response also carries a mirror
// read-back result; verification failure does not undo the submission.
// POST /api/v1/audit/sessions
func (h *AuditHandler) LogSession(c *gin.Context) {
	var body struct {
		SessionSummary     string `json:"sessionSummary"`
		EnableVerification bool   `json:"enableVerification"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.InvalidParam(c, "invalid request body")
		return
	}

	receipt, err := h.audit.LogText(body.SessionSummary)
	if err != nil {
		if errors.Is(err, audit_service.ErrEmptyText) {
			respond.InvalidParam(c, "sessionSummary must not be empty")
			return
		}
		respond.ServerError(c, "audit submission failed: "+err.Error())
		return
	}

	response := gin.H{"receipt": receipt}
	if body.EnableVerification {
		interval := time.Duration(conf.Cfg.Ledger.VerifyIntervalMs) * time.Millisecond
		response["verification"] = h.verifier.Verify(receipt.TopicId, receipt.Digest,
			conf.Cfg.Ledger.VerifyAttempts, interval)
	}
	respond.Success(c, response)
}

// TopicInfo returns the active audit topic and where to browse it.
// GET /api/v1/audit/topic
func (h *AuditHandler) TopicInfo(c *gin.Context) {
	topicID, err := h.registry.GetOrCreateTopic()
	if err != nil {
		respond.ServerError(c, "failed to resolve audit topic: "+err.Error())
		return
	}
	respond.Success(c, gin.H{
		"topicId":   topicID,
		"mirrorUrl": conf.Cfg.Ledger.MirrorUrl + "/api/v1/topics/" + topicID + "/messages",
	})
}
