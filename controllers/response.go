package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/apperr"
	"github.com/tailorhub/tailorhub-api/middleware"
	"github.com/tailorhub/tailorhub-api/models"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError writes err using its kind as the error code
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	respondErrorCode(c, apperr.HTTPStatus(err), string(apperr.KindOf(err)), apperr.Message(err))
}

func respondInvalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    string(apperr.KindValidation),
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// currentActor returns the authenticated actor or writes a 401
func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return models.Actor{}, false
	}
	return actor, true
}

// pathID parses the :id parameter or writes a 400
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid ID format")
		return 0, false
	}
	return uint(id), true
}
