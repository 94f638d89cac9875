package model

import "sort"

// SortRecords orders records descending by the given column, mirroring the
// SQL backend's ORDER BY ... DESC so every backend lists the same way.
// Unknown keys fall back to created_at.
func SortRecords(records []*RequestRecord, orderBy string) {
	sort.SliceStable(records, func(i, j int) bool {
		return orderAfter(records[i], records[j], orderBy)
	})
}

func orderAfter(a, b *RequestRecord, key string) bool {
	switch key {
	case "seq":
		return a.Seq > b.Seq
	case "method":
		return a.Method > b.Method
	case "path":
		return a.Path > b.Path
	case "route_name":
		return a.RouteName > b.RouteName
	case "username":
		return a.Username > b.Username
	case "ip":
		return a.IP > b.IP
	case "status_code":
		return a.StatusCode > b.StatusCode
	default:
		if a.CreatedAt.Equal(b.CreatedAt) {
			// stable tiebreak for records captured in the same instant
			return a.Seq > b.Seq
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
}
