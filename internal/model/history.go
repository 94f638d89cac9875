package model

import (
	"time"
)

// RequestRecord is one captured request/response pair. Rows are insert-only:
// nothing in the codebase updates a record after it has been written.
type RequestRecord struct {
	// Seq is the monotonic storage key used for "give me everything after X"
	// style queries and for chronological replay.
	Seq uint64 `json:"seq" gorm:"primaryKey;autoIncrement"`

	// ID is the per-request UUID, also returned to the client as X-Request-ID.
	ID string `json:"id" gorm:"index;size:36"`

	Method      string `json:"method" gorm:"index;size:8"`
	Path        string `json:"path" gorm:"size:1024"`
	RouteName   string `json:"route_name" gorm:"size:1024"`
	ContentType string `json:"content_type"`

	// RequestBody is the human-readable form (pretty-printed for JSON bodies);
	// Payload keeps the exact bytes so the request can be re-issued verbatim.
	RequestBody string `json:"request_body"`
	Payload     []byte `json:"payload,omitempty"`

	Username  string `json:"username" gorm:"index;size:255"`
	IP        string `json:"ip" gorm:"index;size:64"`
	UserAgent string `json:"user_agent" gorm:"size:255"`

	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`

	// Label is a free-form operator annotation, empty when captured.
	Label string `json:"label,omitempty" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (RequestRecord) TableName() string { return "request_history" }

// Clone returns a value copy so callers can hand records out of a shared
// buffer without exposing the stored instance to mutation.
func (r *RequestRecord) Clone() *RequestRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Payload != nil {
		cp.Payload = append([]byte(nil), r.Payload...)
	}
	return &cp
}

// HistoryQuery narrows a listing of request records.
type HistoryQuery struct {
	SinceSeq uint64
	Limit    int
	From     *time.Time
	To       *time.Time

	// Filter is the static view filter from configuration, matched against
	// a fixed set of record fields.
	Filter map[string]string

	// OrderBy names the column records are sorted by, descending.
	// Empty means created_at.
	OrderBy string
}
