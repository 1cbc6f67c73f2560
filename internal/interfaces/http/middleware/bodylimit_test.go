package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	newRouter := func(limit int64, handler gin.HandlerFunc) *gin.Engine {
		router := gin.New()
		router.Use(BodyLimit(limit))
		router.POST("/sync/refresh", handler)
		return router
	}
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }

	t.Run("small refresh payload passes", func(t *testing.T) {
		router := newRouter(1024, ok)

		req := httptest.NewRequest("POST", "/sync/refresh", strings.NewReader(`{"ids":[10,20]}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("declared oversize body is rejected with the API envelope", func(t *testing.T) {
		router := newRouter(100, ok)

		req := httptest.NewRequest("POST", "/sync/refresh", strings.NewReader(strings.Repeat("1,", 200)))
		req.ContentLength = 400
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
		assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
	})

	t.Run("undeclared length is capped while reading", func(t *testing.T) {
		router := newRouter(50, func(c *gin.Context) {
			buf := make([]byte, 200)
			if _, err := c.Request.Body.Read(buf); err != nil {
				c.String(http.StatusBadRequest, "body too large")
				return
			}
			c.String(http.StatusOK, "ok")
		})

		req := httptest.NewRequest("POST", "/sync/refresh", strings.NewReader(strings.Repeat("x", 100)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
