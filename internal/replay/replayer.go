package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reqtrail/reqtrail/internal/model"
	"golang.org/x/time/rate"
)

// Source is the slice of the history store the replayer needs.
type Source interface {
	List(ctx context.Context, q model.HistoryQuery) ([]*model.RequestRecord, error)
}

type Options struct {
	// BaseURL is the target host the recorded requests are re-issued
	// against, e.g. http://192.168.1.100.
	BaseURL string

	// ExcludedPaths are never replayed, even if they were recorded.
	ExcludedPaths []string

	SinceSeq uint64
	Limit    int

	// DryRun lists what would be replayed without issuing any request.
	DryRun bool

	// RatePerSec throttles replay. Zero means unthrottled.
	RatePerSec float64

	Timeout time.Duration
}

type Outcome struct {
	Seq            uint64 `json:"seq"`
	Method         string `json:"method"`
	Path           string `json:"path"`
	OriginalStatus int    `json:"original_status"`
	ReplayStatus   int    `json:"replay_status,omitempty"`
	Skipped        bool   `json:"skipped,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty"`
	Err            string `json:"error,omitempty"`
}

type Report struct {
	Total    int       `json:"total"`
	Replayed int       `json:"replayed"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// Replayer re-issues recorded requests in their original order, preserving
// method, path, payload, and content type. It is the recovery path for
// state that lived only in process memory before a restart.
type Replayer struct {
	src      Source
	client   *http.Client
	opts     Options
	excluded map[string]struct{}
}

func New(src Source, opts Options) (*Replayer, error) {
	if src == nil {
		return nil, fmt.Errorf("replay source is nil")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 1000
	}

	excluded := make(map[string]struct{}, len(opts.ExcludedPaths))
	for _, p := range opts.ExcludedPaths {
		excluded[p] = struct{}{}
	}

	return &Replayer{
		src:      src,
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		excluded: excluded,
	}, nil
}

func (r *Replayer) Do(ctx context.Context) (*Report, error) {
	records, err := r.src.List(ctx, model.HistoryQuery{
		SinceSeq: r.opts.SinceSeq,
		Limit:    r.opts.Limit,
		OrderBy:  "seq",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// Listing is newest-first; replay has to run in submission order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	var limiter *rate.Limiter
	if r.opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.RatePerSec), 1)
	}

	report := &Report{Total: len(records)}
	for _, rec := range records {
		outcome := Outcome{
			Seq:            rec.Seq,
			Method:         rec.Method,
			Path:           rec.Path,
			OriginalStatus: rec.StatusCode,
		}

		if _, ok := r.excluded[rec.Path]; ok {
			outcome.Skipped = true
			report.Skipped++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		if r.opts.DryRun {
			outcome.DryRun = true
			report.Replayed++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return report, err
			}
		}

		status, err := r.issue(ctx, rec)
		if err != nil {
			outcome.Err = err.Error()
			report.Failed++
		} else {
			outcome.ReplayStatus = status
			report.Replayed++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}

func (r *Replayer) issue(ctx context.Context, rec *model.RequestRecord) (int, error) {
	var body io.Reader
	if len(rec.Payload) > 0 {
		body = bytes.NewReader(rec.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, rec.Method, r.opts.BaseURL+rec.Path, body)
	if err != nil {
		return 0, err
	}
	if rec.ContentType != "" {
		req.Header.Set("Content-Type", rec.ContentType)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
