package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reqtrail/reqtrail/internal/config"
	"github.com/reqtrail/reqtrail/internal/model"
	"github.com/reqtrail/reqtrail/internal/pkg/apperrors"
	"github.com/reqtrail/reqtrail/internal/service"
)

type HistoryHandler struct {
	svc  *service.HistoryService
	view config.ViewConfig
}

func NewHistoryHandler(svc *service.HistoryService, view config.ViewConfig) *HistoryHandler {
	return &HistoryHandler{svc: svc, view: view}
}

func (h *HistoryHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	var sinceSeq uint64
	if raw := c.Query("since_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("since_id must be a valid integer"))
			return
		}
		sinceSeq = parsed
	}

	var fromPtr *time.Time
	var toPtr *time.Time
	if raw := c.Query("from"); raw != "" {
		if t, err := parseTime(raw); err == nil {
			fromPtr = &t
		} else {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := parseTime(raw); err == nil {
			toPtr = &t
		} else {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
	}

	records, err := h.svc.List(c.Request.Context(), model.HistoryQuery{
		SinceSeq: sinceSeq,
		Limit:    limit,
		From:     fromPtr,
		To:       toPtr,
		Filter:   h.view.Filter,
		OrderBy:  h.view.OrderBy,
	})
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}

	if allColumns(h.view.Columns) {
		c.JSON(http.StatusOK, records)
		return
	}
	c.JSON(http.StatusOK, projectColumns(records, h.view.Columns))
}

func (h *HistoryHandler) Clear(c *gin.Context) {
	removed, err := h.svc.Clear(c.Request.Context())
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrStorage, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "history deleted", "records_removed": removed})
}

func allColumns(columns []string) bool {
	if len(columns) == 0 {
		return true
	}
	for _, col := range columns {
		if col == "*" || col == "__all__" {
			return true
		}
	}
	return false
}

// projectColumns narrows each record to the configured visible columns,
// keyed by the record's json field names.
func projectColumns(records []*model.RequestRecord, columns []string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		var full map[string]interface{}
		if err := json.Unmarshal(raw, &full); err != nil {
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			if val, ok := full[col]; ok {
				row[col] = val
			}
		}
		out = append(out, row)
	}
	return out
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format")
}
