package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

// pathParam returns a trimmed, non-empty path parameter or a validation error naming it.
func pathParam(c *gin.Context, key string) (string, error) {
	value := strings.TrimSpace(c.Param(key))
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, key+" is required")
	}
	return value, nil
}
