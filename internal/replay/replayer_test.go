package replay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/reqtrail/reqtrail/internal/model"
	"github.com/stretchr/testify/assert"
)

type sliceSource struct {
	records []*model.RequestRecord
}

// List mimics the repositories: newest first, since-seq applied.
func (s *sliceSource) List(_ context.Context, q model.HistoryQuery) ([]*model.RequestRecord, error) {
	out := make([]*model.RequestRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if q.SinceSeq > 0 && rec.Seq < q.SinceSeq {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

type captured struct {
	method      string
	path        string
	body        string
	contentType string
}

func newTargetServer() (*httptest.Server, *[]captured, *sync.Mutex) {
	var mu sync.Mutex
	var hits []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		hits = append(hits, captured{
			method:      r.Method,
			path:        r.URL.Path,
			body:        string(body),
			contentType: r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	return srv, &hits, &mu
}

func testRecords() []*model.RequestRecord {
	return []*model.RequestRecord{
		{Seq: 1, Method: "POST", Path: "/v1/commands", Payload: []byte(`{"command":"a"}`), ContentType: "application/json", StatusCode: 200},
		{Seq: 2, Method: "DELETE", Path: "/v1/commands", StatusCode: 200},
		{Seq: 3, Method: "POST", Path: "/v1/commands", Payload: []byte(`{"command":"b"}`), ContentType: "application/json", StatusCode: 200},
	}
}

func TestReplayInSubmissionOrder(t *testing.T) {
	srv, hits, mu := newTargetServer()
	defer srv.Close()

	r, err := New(&sliceSource{records: testRecords()}, Options{BaseURL: srv.URL})
	assert.NoError(t, err)

	report, err := r.Do(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Replayed)
	assert.Equal(t, 0, report.Failed)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, *hits, 3)
	first := (*hits)[0]
	assert.Equal(t, "POST", first.method)
	assert.Equal(t, `{"command":"a"}`, first.body)
	assert.Equal(t, "application/json", first.contentType)
	assert.Equal(t, "DELETE", (*hits)[1].method)
	assert.Equal(t, `{"command":"b"}`, (*hits)[2].body)
}

func TestReplayExcludedPathsSkipped(t *testing.T) {
	srv, hits, mu := newTargetServer()
	defer srv.Close()

	records := testRecords()
	records[1].Path = "/v1/internal"

	r, err := New(&sliceSource{records: records}, Options{
		BaseURL:       srv.URL,
		ExcludedPaths: []string{"/v1/internal"},
	})
	assert.NoError(t, err)

	report, err := r.Do(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Replayed)
	assert.Equal(t, 1, report.Skipped)

	mu.Lock()
	defer mu.Unlock()
	for _, h := range *hits {
		assert.NotEqual(t, "/v1/internal", h.path)
	}
}

func TestReplaySinceSeq(t *testing.T) {
	srv, hits, mu := newTargetServer()
	defer srv.Close()

	r, err := New(&sliceSource{records: testRecords()}, Options{BaseURL: srv.URL, SinceSeq: 3})
	assert.NoError(t, err)

	report, err := r.Do(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Total)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, *hits, 1)
}

func TestReplayDryRunSendsNothing(t *testing.T) {
	srv, hits, mu := newTargetServer()
	defer srv.Close()

	r, err := New(&sliceSource{records: testRecords()}, Options{BaseURL: srv.URL, DryRun: true})
	assert.NoError(t, err)

	report, err := r.Do(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, report.Replayed)
	for _, o := range report.Outcomes {
		assert.True(t, o.DryRun)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *hits)
}

func TestReplayReportsFailures(t *testing.T) {
	r, err := New(&sliceSource{records: testRecords()[:1]}, Options{BaseURL: "http://127.0.0.1:1"})
	assert.NoError(t, err)

	report, err := r.Do(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.NotEmpty(t, report.Outcomes[0].Err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(&sliceSource{}, Options{})
	assert.Error(t, err)
}
