package observability

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	deviceIDHeader  = "X-Device-ID"

	// RequestIDKey holds the request id in the gin context.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware assigns a request id when the caller sent none and
// echoes it on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := RequestIDFromRequest(c.Request)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, requestID)
		}
		c.Set(RequestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get(deviceIDHeader)
}

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

// IPFromRequest prefers the first X-Forwarded-For hop.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
