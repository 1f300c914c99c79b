package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/middleware"
	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/services"
	"github.com/tailorhub/tailorhub-api/tests/testutil"
)

const (
	testTokenSecret   = "controller-test-secret"
	testWebhookSecret = "controller-webhook-secret"
)

type apiFixture struct {
	db       *gorm.DB
	router   *gin.Engine
	notifier *services.MockNotifier
	gateway  *services.MockPaymentGateway
	sink     *services.MockPayoutSink
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	logger := zaptest.NewLogger(t)
	notifier := services.NewMockNotifier()
	gateway := services.NewMockPaymentGateway(testWebhookSecret)
	sink := services.NewMockPayoutSink()
	audit := services.NewGormAuditLog(db)

	deps := services.Dependencies{
		DB:            db,
		Audit:         audit,
		Notifier:      notifier,
		NotifyTimeout: time.Second,
		Logger:        logger,
	}
	fees := services.NewFeeCalculator(decimal.RequireFromString("0.10"), decimal.RequireFromString("0.015"))

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Orders:     NewOrderController(services.NewOrderLedger(deps)),
		Escrow:     NewEscrowController(services.NewEscrowCoordinator(deps, gateway, fees, sink, time.Second)),
		Moderation: NewModerationController(services.NewModerationGate(deps)),
		Contact:    NewContactController(services.NewContactInbox(deps)),
		Activity:   NewActivityController(audit, 2),
	}, middleware.EnsureLocalToken(testTokenSecret, logger))

	return &apiFixture{
		db:       db,
		router:   router,
		notifier: notifier,
		gateway:  gateway,
		sink:     sink,
	}
}

// do sends a JSON request as actor; a zero actor sends no token.
func (f *apiFixture) do(t *testing.T, actor models.Actor, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor.ID != 0 {
		token, err := middleware.SignLocalToken(testTokenSecret, actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return w, response
}

func errorCode(t *testing.T, response map[string]interface{}) string {
	t.Helper()
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %v", response)
	return errObj["code"].(string)
}

func dataObject(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response data is not an object: %v", response)
	return data
}

func dataList(t *testing.T, response map[string]interface{}) []interface{} {
	t.Helper()
	data, ok := response["data"].([]interface{})
	require.True(t, ok, "response data is not a list: %v", response)
	return data
}

func uintPtr(v uint) *uint {
	return &v
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
