package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tailorhub/tailorhub-api/models"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		path      string
		requestID string
		wantLevel zapcore.Level
		wantActor bool
	}{
		{name: "ok request", path: "/ok", wantLevel: zapcore.InfoLevel},
		{name: "client error", path: "/missing", wantLevel: zapcore.WarnLevel},
		{name: "server error", path: "/boom", wantLevel: zapcore.ErrorLevel},
		{name: "keeps incoming request id", path: "/ok", requestID: "req-123", wantLevel: zapcore.InfoLevel},
		{name: "logs the actor", path: "/me", wantLevel: zapcore.InfoLevel, wantActor: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			router := gin.New()
			router.Use(RequestLogger(zap.New(core)))
			router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
			router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
			router.GET("/me", func(c *gin.Context) {
				SetActor(c, models.Actor{ID: 4, Role: models.RoleTailor})
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			requestID := w.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, requestID)
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, requestID)
			}

			entries := logs.FilterMessage("request").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, requestID, fields["request_id"])
			assert.Equal(t, tt.path, fields["path"])
			if tt.wantActor {
				assert.Equal(t, uint64(4), fields["actor_id"])
				assert.Equal(t, "tailor", fields["actor_role"])
			} else {
				assert.NotContains(t, fields, "actor_id")
			}
		})
	}
}
