package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"atelier/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/pretty"
)

// HeaderRequestID carries the trace id in and out of the service
const HeaderRequestID = "X-Request-ID"

const maxLoggedBody = 1000

// Logger tags the request context with a trace id and logs one line per request
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		traceID := c.GetHeader(HeaderRequestID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, traceID)

		var bodyStr string
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPatch {
			bodyStr = getRequestBody(c)
		}

		c.Next()

		// Skip logging for 404 requests
		statusCode := c.Writer.Status()
		if statusCode == http.StatusNotFound && c.FullPath() == "" {
			return
		}

		if bodyStr != "" {
			logger.InfoCtx(ctx, "[GIN] %3d | %13v | %15s | %s %s | body: %s",
				statusCode, time.Since(startTime), c.ClientIP(), c.Request.Method, c.Request.RequestURI, bodyStr)
			return
		}
		logger.InfoCtx(ctx, "[GIN] %3d | %13v | %15s | %s %s",
			statusCode, time.Since(startTime), c.ClientIP(), c.Request.Method, c.Request.RequestURI)
	}
}

// getRequestBody gets request body content
func getRequestBody(c *gin.Context) string {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
		// Reset request body since reading it clears it
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	return CompressBody(string(bodyBytes))
}

// CompressBody compresses JSON using pretty package
func CompressBody(body string) string {
	if len(body) == 0 {
		return ""
	}

	compressed := pretty.Ugly([]byte(body))
	if len(compressed) > maxLoggedBody {
		return string(compressed[:maxLoggedBody]) + "..."
	}
	return string(compressed)
}
