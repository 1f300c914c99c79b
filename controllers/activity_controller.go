package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/services"
)

// ActivityController serves the admin activity feed
type ActivityController struct {
	audit    services.AuditLog
	pageSize int
}

// NewActivityController creates an ActivityController that returns at most
// pageSize entries per request
func NewActivityController(audit services.AuditLog, pageSize int) *ActivityController {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &ActivityController{audit: audit, pageSize: pageSize}
}

// Recent handles GET /api/v1/admin/activity?limit=
func (a *ActivityController) Recent(c *gin.Context) {
	limit := a.pageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	logs, err := a.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"meta": gin.H{
			"limit": limit,
		},
	})
}
