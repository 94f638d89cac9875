package repository

import "testing"

func TestFilterColumnAllowlist(t *testing.T) {
	for _, key := range []string{"method", "path", "route_name", "username", "ip", "label", "status_code"} {
		col, ok := filterColumn(key)
		if !ok || col != key {
			t.Errorf("filterColumn(%q) = (%q, %v)", key, col, ok)
		}
	}
	for _, key := range []string{"user_agent", "payload", "seq; DROP TABLE request_history", ""} {
		if _, ok := filterColumn(key); ok {
			t.Errorf("filterColumn(%q) accepted an unfilterable key", key)
		}
	}
}

func TestOrderColumnAllowlist(t *testing.T) {
	for _, key := range []string{"seq", "method", "path", "route_name", "username", "ip", "status_code", "created_at"} {
		if got := orderColumn(key); got != key {
			t.Errorf("orderColumn(%q) = %q", key, got)
		}
	}
	for _, key := range []string{"payload", "created_at; --", ""} {
		if got := orderColumn(key); got != "created_at" {
			t.Errorf("orderColumn(%q) = %q, want created_at fallback", key, got)
		}
	}
}
