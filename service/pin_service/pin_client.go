package pin_service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"evidence-vault/common"

	"github.com/imroc/req"
	"github.com/tidwall/gjson"
)

var (
	ErrEmptyContent = errors.New("content is empty")
	ErrInvalidCid   = errors.New("invalid cid")
)

// PinClient talks to the content-addressed pinning service. Uploads go to
// the pinning API; downloads go through an ordered gateway fallback chain.
type PinClient struct {
	apiURL     string
	apiToken   string
	gateways   []string
	uploader   *req.Req
	downloader *req.Req
}

// PinResult result of pinning one blob
type PinResult struct {
	Cid         string `json:"cid"`
	Size        int64  `json:"size"`
	Digest      string `json:"digest"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// NewPinClient create pinning service client.
// Each gateway download attempt runs within downloadTimeout on its own.
func NewPinClient(apiURL, apiToken string, gateways []string, uploadTimeout, downloadTimeout time.Duration) *PinClient {
	uploader := req.New()
	uploader.SetTimeout(uploadTimeout)

	downloader := req.New()
	downloader.SetTimeout(downloadTimeout)

	return &PinClient{
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiToken:   apiToken,
		gateways:   gateways,
		uploader:   uploader,
		downloader: downloader,
	}
}

func (c *PinClient) authHeader() req.Header {
	header := req.Header{"Accept": "application/json"}
	if c.apiToken != "" {
		header["Authorization"] = "Bearer " + c.apiToken
	}
	return header
}

// Upload pins a blob and returns its content identifier. The digest is
// computed locally before anything is sent, so later integrity checks do not
// depend on the pinning provider. Metadata is sanitized to the string/number
// forms the remote API accepts.
func (c *PinClient) Upload(data []byte, filename string, metadata map[string]interface{}) (*PinResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyContent
	}

	digest := common.Sha256Hex(data)

	metaJSON, err := json.Marshal(common.SanitizeMetadata(metadata))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	upload := req.FileUpload{
		FileName:  filename,
		FieldName: "file",
		File:      io.NopCloser(bytes.NewReader(data)),
	}

	resp, err := c.uploader.Post(c.apiURL+"/api/v0/add",
		c.authHeader(),
		req.Param{"meta": string(metaJSON), "cid-version": "1"},
		upload)
	if err != nil {
		return nil, fmt.Errorf("pin upload failed: %w", err)
	}
	if code := resp.Response().StatusCode; code != 200 {
		return nil, fmt.Errorf("pin upload failed: status %d", code)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read pin response: %w", err)
	}

	cid := gjson.GetBytes(body, "Hash").String()
	if cid == "" {
		cid = gjson.GetBytes(body, "cid").String()
	}
	if cid == "" {
		return nil, fmt.Errorf("pin response missing cid: %s", string(body))
	}

	size := gjson.GetBytes(body, "Size").Int()
	if size == 0 {
		size = int64(len(data))
	}

	return &PinResult{
		Cid:         cid,
		Size:        size,
		Digest:      digest,
		IsDuplicate: gjson.GetBytes(body, "Duplicate").Bool(),
	}, nil
}

// Download retrieves a blob by CID through the gateway chain: primary first,
// then each mirror, each within its own timeout. All failures are aggregated
// into one hard error; there are no implicit retries beyond the chain,
// callers decide whether to retry the whole operation.
func (c *PinClient) Download(cid string) ([]byte, error) {
	if cid == "" {
		return nil, ErrInvalidCid
	}

	var attempts []string
	for _, gateway := range c.gateways {
		url := strings.TrimRight(gateway, "/") + "/ipfs/" + cid

		resp, err := c.downloader.Get(url)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", gateway, err))
			continue
		}
		if code := resp.Response().StatusCode; code != 200 {
			attempts = append(attempts, fmt.Sprintf("%s: status %d", gateway, code))
			continue
		}

		data, err := resp.ToBytes()
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", gateway, err))
			continue
		}
		if len(data) == 0 {
			attempts = append(attempts, fmt.Sprintf("%s: empty body", gateway))
			continue
		}
		return data, nil
	}

	return nil, fmt.Errorf("download %s failed on all gateways: %s", cid, strings.Join(attempts, "; "))
}

// Unpin removes a pin. Best effort: delete flows log and continue on failure.
func (c *PinClient) Unpin(cid string) error {
	if cid == "" {
		return ErrInvalidCid
	}

	resp, err := c.uploader.Post(c.apiURL+"/api/v0/pin/rm",
		c.authHeader(),
		req.Param{"arg": cid})
	if err != nil {
		return fmt.Errorf("unpin %s failed: %w", cid, err)
	}
	if code := resp.Response().StatusCode; code != 200 {
		return fmt.Errorf("unpin %s failed: status %d", cid, code)
	}

	log.Printf("Unpinned %s", cid)
	return nil
}
