package subprocess

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// SortNewestFirst orders listings by most recently updated.
const SortNewestFirst = "updated_date_desc"

// SearchURL builds the catalog listing query for a topic. keyword is always sent, even
// when empty; category only when set. Parameters are encoded in sorted order.
func SearchURL(origin, searchPath string, topic watch.Topic) string {
	qs := url.Values{}
	qs.Set("btn_search", "")
	qs.Set("keyword", topic.Keyword)
	qs.Set("sort", SortNewestFirst)
	if topic.Category != "" {
		qs.Set("category", topic.Category)
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(searchPath, "/") + "?" + qs.Encode()
}

// absolutize prefixes site-relative URLs with origin and leaves anything else alone.
func absolutize(origin, raw string) string {
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return strings.TrimRight(origin, "/") + raw
	}
	return raw
}
