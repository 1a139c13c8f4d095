// Package rank implements canonical URL keying and
// score-based selection with per-host diversification. Grounded on
// internal/select's dedup-by-normalized-URL and score-sort-then-cap shape,
// generalized to an explicit trust/overlap/recency scoring formula and
// backed by word lists from internal/data.
package rank

import (
	"net/url"
	"sort"
	"strings"

	"github.com/nolia/ask-service/internal/data"
)

// Canonicalize returns the normalized dedup key for rawURL: lowercase host
// with a leading "www." removed, path trimmed of a trailing slash (empty
// becomes "/"), tracking query parameters stripped, remaining parameters
// sorted lexicographically, and fragment dropped. The scheme is excluded so
// http and https collapse to the same key. The function is idempotent:
// canonicalizing an already-canonical key returns it unchanged.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	path := u.Path
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}

	query := stripTrackingParams(u.Query())
	var parts []string
	for k := range query {
		parts = append(parts, k)
	}
	sort.Strings(parts)
	var qb strings.Builder
	for i, k := range parts {
		for _, v := range query[k] {
			if qb.Len() > 0 {
				qb.WriteByte('&')
			}
			qb.WriteString(k)
			qb.WriteByte('=')
			qb.WriteString(v)
		}
		_ = i
	}

	key := host + path
	if qb.Len() > 0 {
		key += "?" + qb.String()
	}
	return key
}

func stripTrackingParams(q url.Values) url.Values {
	tracking := map[string]bool{}
	for _, p := range data.Load().TrackingParams {
		tracking[strings.ToLower(p)] = true
	}
	out := url.Values{}
	for k, v := range q {
		lk := strings.ToLower(k)
		if tracking[lk] {
			continue
		}
		if strings.HasPrefix(lk, "utm_") {
			continue
		}
		out[k] = v
	}
	return out
}
