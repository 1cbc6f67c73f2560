package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradeshelf/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects request bodies above maxBytes. Sync trigger
// payloads are small ID lists; anything larger is a mistake or abuse.
// Chunked requests without a declared length are capped while reading.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("REQUEST_TOO_LARGE", "Request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
