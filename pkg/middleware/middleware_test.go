package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Stand-in for JWTAuth: the identity lands in the context before the
	// limiter runs, mirroring the route-group middleware order.
	identify := func(c *gin.Context) {
		if userID := c.GetHeader("X-Test-User"); userID != "" {
			c.Set("userID", userID)
		}
	}
	router.POST("/api/v1/items/:item_id/bids", identify, RateLimit(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doBid(router *gin.Engine, userID string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/items/I001/bids", nil)
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_KeysByAuthenticatedUser(t *testing.T) {
	router := newLimitedRouter()

	// Burst of 1 per user on the bid route: the second immediate request from
	// the same user is throttled.
	require.Equal(t, http.StatusOK, doBid(router, "RL-A"))
	require.Equal(t, http.StatusTooManyRequests, doBid(router, "RL-A"))

	// A different authenticated user has an independent bucket, even though
	// both requests arrive from the same client address.
	require.Equal(t, http.StatusOK, doBid(router, "RL-B"))
}
