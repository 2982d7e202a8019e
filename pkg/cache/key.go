package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response. Keys are namespaced per organization so
// one Redis instance can serve scripts running against several orgs.
type Key struct {
	// OrgID is the organization the response belongs to.
	OrgID string

	// Path is the endpoint path (e.g. "/v2/rulesets").
	Path string

	// Query holds the request's query parameters.
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: ts:org:path:param1=val1:param2=val2
func (k Key) String() string {
	parts := []string{"ts", k.OrgID, strings.Trim(k.Path, "/")}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Query.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}
