package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reqtrail/reqtrail/internal/config"
	"github.com/reqtrail/reqtrail/internal/model"
	"github.com/reqtrail/reqtrail/internal/pkg/logger"
	"github.com/reqtrail/reqtrail/internal/pkg/metrics"
	"github.com/reqtrail/reqtrail/internal/service"
)

// ContextUserKey is where an auth layer (out of scope here) may place the
// authenticated username; captured records pick it up when present.
const ContextUserKey = "request_user"

// saveOptOutParam lets a caller suppress capture of a single request
// with ?save=0.
const saveOptOutParam = "save"

// bodyLogWriter wraps the ResponseWriter to capture the response body
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// HistoryOptions is the static rule set for capture eligibility, built once
// at construction time.
type HistoryOptions struct {
	Enabled  bool
	savable  map[string]struct{}
	excluded map[string]struct{}
}

func NewHistoryOptions(cfg config.HistoryConfig) HistoryOptions {
	opts := HistoryOptions{
		Enabled:  cfg.Enabled,
		savable:  make(map[string]struct{}, len(cfg.SavableMethods)),
		excluded: make(map[string]struct{}, len(cfg.ExcludedRoutes)),
	}
	for _, m := range cfg.SavableMethods {
		opts.savable[strings.ToUpper(m)] = struct{}{}
	}
	for _, route := range cfg.ExcludedRoutes {
		opts.excluded[route] = struct{}{}
	}
	return opts
}

// HistoryMiddleware captures eligible request/response pairs and writes one
// record per request through the history service. The write is inline and
// blocking; a failed write is logged and dropped, never retried, and never
// touches the response already produced.
func HistoryMiddleware(svc *service.HistoryService, opts HistoryOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		reqID := uuid.New().String()
		c.Header("X-Request-ID", reqID)

		// Tee the request body and write it back so Bind still works
		// downstream. Post-handler the stream is gone, so this has to
		// happen up front.
		var reqBodyBytes []byte
		if c.Request.Body != nil {
			reqBodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		routeName := c.FullPath()
		if routeName == "" {
			routeName = c.Request.URL.Path
		}
		status := c.Writer.Status()

		eligible, reason := shouldPersist(opts, c.Request.Method, status, routeName, c.Query(saveOptOutParam))
		if !eligible {
			metrics.RecordsSkipped.WithLabelValues(reason).Inc()
			return
		}

		contentType := c.ContentType()
		rec := &model.RequestRecord{
			ID:           reqID,
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			RouteName:    routeName,
			ContentType:  contentType,
			RequestBody:  prettyBody(contentType, reqBodyBytes),
			Payload:      reqBodyBytes,
			Username:     usernameFromContext(c),
			IP:           c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			StatusCode:   status,
			ResponseBody: prettyBody(c.Writer.Header().Get("Content-Type"), blw.body.Bytes()),
			CreatedAt:    start,
		}

		if err := svc.Record(c.Request.Context(), rec); err != nil {
			logger.LogError(c.Request.Context(), err, "Failed to persist request record",
				"method", rec.Method, "path", rec.Path)
		}
	}
}

// shouldPersist is the eligibility rule set. The skip reason feeds the
// records_skipped metric.
func shouldPersist(opts HistoryOptions, method string, status int, routeName, saveParam string) (bool, string) {
	if !opts.Enabled {
		return false, "disabled"
	}
	if _, ok := opts.savable[method]; !ok {
		return false, "method"
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return false, "status"
	}
	if saveParam == "0" {
		return false, "opt_out"
	}
	if _, ok := opts.excluded[routeName]; ok {
		return false, "excluded"
	}
	return true, ""
}

func usernameFromContext(c *gin.Context) string {
	if val, exists := c.Get(ContextUserKey); exists {
		if name, ok := val.(string); ok {
			return name
		}
	}
	if name, _, ok := c.Request.BasicAuth(); ok {
		return name
	}
	return ""
}

// prettyBody renders a body for the human-readable column. JSON is
// re-indented, other text kept as-is, binary payloads yield "" (the raw
// bytes live in the payload column).
func prettyBody(contentType string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if strings.HasPrefix(contentType, "application/json") {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "    "); err == nil {
			return buf.String()
		}
	}
	if utf8.Valid(body) {
		return string(body)
	}
	return ""
}
