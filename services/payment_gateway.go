package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tailorhub/tailorhub-api/apperr"
)

// Gateway payment statuses
const (
	PaymentStatusUnpaid  = "UNPAID"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
	PaymentStatusExpired = "EXPIRED"
)

// ChargeResult is the gateway's answer to a charge request
type ChargeResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// WebhookEvent is the callback body the gateway posts on payment updates
type WebhookEvent struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
}

// PaymentGateway charges customers and authenticates gateway callbacks
type PaymentGateway interface {
	Charge(ctx context.Context, orderID uint, amount int64) (ChargeResult, error)
	VerifyWebhook(signature string, payload []byte) bool
}

// SignPayload returns the hex HMAC-SHA256 of payload under key.
func SignPayload(key string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func verifySignature(key, signature string, payload []byte) bool {
	if key == "" || signature == "" {
		return false
	}
	expected := SignPayload(key, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// HTTPGateway talks to a hosted payment gateway over HTTPS
type HTTPGateway struct {
	Client       *http.Client
	BaseURL      string
	APIKey       string
	PrivateKey   string
	MerchantCode string
}

// NewHTTPGateway creates a gateway client whose requests never outlive timeout
func NewHTTPGateway(baseURL, apiKey, privateKey, merchantCode string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		Client:       &http.Client{Timeout: timeout},
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		PrivateKey:   privateKey,
		MerchantCode: merchantCode,
	}
}

type chargeRequest struct {
	MerchantRef string `json:"merchant_ref"`
	Amount      int64  `json:"amount"`
	Signature   string `json:"signature"`
}

type chargeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Reference   string `json:"reference"`
		MerchantRef string `json:"merchant_ref"`
		Status      string `json:"status"`
		Amount      int64  `json:"amount"`
	} `json:"data"`
}

// Charge opens a transaction for amount against the order
func (g *HTTPGateway) Charge(ctx context.Context, orderID uint, amount int64) (ChargeResult, error) {
	merchantRef := fmt.Sprintf("ORD-%d-%s", orderID, uuid.NewString()[:8])
	// HMAC-SHA256(merchant_code + merchant_ref + amount, private_key)
	signature := SignPayload(g.PrivateKey, []byte(fmt.Sprintf("%s%s%d", g.MerchantCode, merchantRef, amount)))

	body, err := json.Marshal(chargeRequest{MerchantRef: merchantRef, Amount: amount, Signature: signature})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("failed to encode charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/transaction/create", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("failed to build charge request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ChargeResult{}, apperr.Wrap(apperr.KindGatewayTimeout, err, "payment gateway timed out")
		}
		return ChargeResult{}, apperr.Wrap(apperr.KindGateway, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChargeResult{}, apperr.Wrap(apperr.KindGateway, err, "failed to read gateway response")
	}

	var out chargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ChargeResult{}, apperr.Wrap(apperr.KindGateway, err, "failed to parse gateway response")
	}
	if resp.StatusCode >= http.StatusBadRequest || !out.Success {
		return ChargeResult{}, apperr.New(apperr.KindGateway, "payment gateway rejected charge: %s", out.Message)
	}

	return ChargeResult{Reference: out.Data.Reference, Status: out.Data.Status}, nil
}

// VerifyWebhook checks the callback signature: HMAC-SHA256(body, private_key)
func (g *HTTPGateway) VerifyWebhook(signature string, payload []byte) bool {
	return verifySignature(g.PrivateKey, signature, payload)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
