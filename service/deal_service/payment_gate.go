package deal_service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req"
	"github.com/tidwall/gjson"
)

// ErrInsufficientFunds marks a migration blocked by the payment gate, as
// opposed to a connectivity failure. Operators treat the two differently:
// one needs a top-up, the other needs patience.
var ErrInsufficientFunds = errors.New("insufficient funds for storage deal")

// GateStatus live readiness of one owner's payment account
type GateStatus struct {
	IsReady         bool    `json:"isReady"`
	Balance         float64 `json:"balance"`
	MinimumRequired float64 `json:"minimumRequired"`
	TokenKind       string  `json:"tokenKind"`
}

// SetUpResult result of an allowance/top-up attempt
type SetUpResult struct {
	IsReady bool   `json:"isReady"`
	Message string `json:"message"`
}

// PaymentGate checks and tops up the balance required before a migration may
// run. The gate is strictly per-owner: every call carries the owner address
// and no readiness is shared across owners.
type PaymentGate struct {
	apiURL     string
	apiToken   string
	network    string
	tokenKind  string
	minBalance float64
	client     *req.Req

	mu        sync.RWMutex
	lastReady map[string]bool // informational cache; gating always re-derives
}

// NewPaymentGate create payment gate client
func NewPaymentGate(apiURL, apiToken, network, tokenKind string, minBalance float64, timeout time.Duration) *PaymentGate {
	client := req.New()
	client.SetTimeout(timeout)

	return &PaymentGate{
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiToken:   apiToken,
		network:    network,
		tokenKind:  tokenKind,
		minBalance: minBalance,
		client:     client,
		lastReady:  make(map[string]bool),
	}
}

func (g *PaymentGate) authHeader() req.Header {
	header := req.Header{"Accept": "application/json"}
	if g.apiToken != "" {
		header["Authorization"] = "Bearer " + g.apiToken
	}
	return header
}

// CheckStatus reports whether the owner's account can fund a deal. The
// balance is fetched live on every call: balances change out of band
// (external funding, other processes), so the cached flag is never used
// for gating.
func (g *PaymentGate) CheckStatus(owner string) (*GateStatus, error) {
	resp, err := g.client.Get(g.apiURL+"/api/v1/balance",
		g.authHeader(),
		req.Param{"address": owner, "network": g.network})
	if err != nil {
		return nil, fmt.Errorf("balance check failed: %w", err)
	}
	if code := resp.Response().StatusCode; code != 200 {
		return nil, fmt.Errorf("balance check failed: status %d", code)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read balance response: %w", err)
	}

	balance := gjson.GetBytes(body, "balance").Float()
	status := &GateStatus{
		IsReady:         balance >= g.minBalance,
		Balance:         balance,
		MinimumRequired: g.minBalance,
		TokenKind:       g.tokenKind,
	}

	g.mu.Lock()
	g.lastReady[owner] = status.IsReady
	g.mu.Unlock()

	return status, nil
}

// SetUp performs whatever top-up/approval the owner's account needs.
// Idempotent: calling it when already funded is a no-op that still
// returns success.
func (g *PaymentGate) SetUp(owner string) (*SetUpResult, error) {
	status, err := g.CheckStatus(owner)
	if err != nil {
		return nil, err
	}
	if status.IsReady {
		return &SetUpResult{
			IsReady: true,
			Message: fmt.Sprintf("already funded: %v %s available", status.Balance, status.TokenKind),
		}, nil
	}

	resp, err := g.client.Post(g.apiURL+"/api/v1/allowance",
		g.authHeader(),
		req.BodyJSON(map[string]interface{}{
			"address": owner,
			"network": g.network,
			"amount":  g.minBalance,
		}))
	if err != nil {
		return nil, fmt.Errorf("allowance setup failed: %w", err)
	}
	if code := resp.Response().StatusCode; code != 200 {
		return nil, fmt.Errorf("allowance setup failed: status %d", code)
	}

	// Re-check rather than trusting the setup response.
	status, err = g.CheckStatus(owner)
	if err != nil {
		return nil, err
	}

	message := "allowance configured"
	if !status.IsReady {
		message = fmt.Sprintf("allowance submitted but balance %v %s still below minimum %v",
			status.Balance, status.TokenKind, status.MinimumRequired)
	}
	return &SetUpResult{IsReady: status.IsReady, Message: message}, nil
}

// WasReady returns the last observed readiness for an owner. Informational
// only (status endpoints); never used to gate a migration.
func (g *PaymentGate) WasReady(owner string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastReady[owner]
}
