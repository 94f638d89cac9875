package model

import "strconv"

// FilterField resolves a view-filter key against a record. The key set is
// fixed; unknown keys report ok=false and never match.
func FilterField(r *RequestRecord, key string) (string, bool) {
	switch key {
	case "method":
		return r.Method, true
	case "path":
		return r.Path, true
	case "route_name":
		return r.RouteName, true
	case "username":
		return r.Username, true
	case "ip":
		return r.IP, true
	case "label":
		return r.Label, true
	case "status_code":
		return strconv.Itoa(r.StatusCode), true
	default:
		return "", false
	}
}

// MatchesFilter reports whether a record satisfies every key=value pair of a
// view filter. Used by the in-memory and Redis backends; the SQL backend
// pushes the same predicate into the query.
func MatchesFilter(r *RequestRecord, filter map[string]string) bool {
	for key, want := range filter {
		got, ok := FilterField(r, key)
		if !ok || got != want {
			return false
		}
	}
	return true
}
