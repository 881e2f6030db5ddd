package core

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// watchQueryParams are the query parameters a watch connection owns.
// They are stripped from configured endpoints so that stale values
// (e.g. a resourceVersion pasted from a previous run) never leak into
// new connections.
var watchQueryParams = []string{
	"watch",
	"resourceVersion",
	"resourceVersionMatch",
	"timeoutSeconds",
	"allowWatchBookmarks",
	"sendInitialEvents",
}

// CleanEndpoint normalises a configured list/watch endpoint: the
// legacy "watch" path segment directly after the version segment and
// all watch-related query parameters are removed. Cleaning an
// already-clean endpoint returns it unchanged.
func CleanEndpoint(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Path = cleanWatchPath(u.Path)

	q := u.Query()
	for _, p := range watchQueryParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// cleanWatchPath drops empty segments and the deprecated "watch"
// segment of pre-1.11 watch URLs (/api/v1/watch/... and
// /apis/{g}/{v}/watch/...).
func cleanWatchPath(p string) string {
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}

	switch {
	case len(segments) > 2 && segments[0] == "api" && segments[2] == "watch":
		segments = append(segments[:2], segments[3:]...)
	case len(segments) > 3 && segments[0] == "apis" && segments[3] == "watch":
		segments = append(segments[:3], segments[4:]...)
	}

	return "/" + strings.Join(segments, "/")
}

// EndpointHash derives a stable identity for a watch target from the
// cluster identity and the cleaned endpoint. Persisted checkpoints
// carry it so a resourceVersion is never replayed against a different
// target.
func EndpointHash(cluster, endpoint string) string {
	sum := sha256.Sum256([]byte(cluster + "\n" + endpoint))
	return hex.EncodeToString(sum[:])
}
