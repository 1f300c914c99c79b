package testutil

import (
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/middleware"
	"github.com/tailorhub/tailorhub-api/models"
)

// SetActorContext marks c as authenticated by actor
func SetActorContext(c *gin.Context, actor models.Actor) {
	middleware.SetActor(c, actor)
}

// AsActor returns a middleware that authenticates every request as actor
func AsActor(actor models.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetActorContext(c, actor)
		c.Next()
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	return c, engine, w
}
