package subprocess

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

var (
	errEmptyOutput = errors.New("crawler produced no output")
	errNotArray    = errors.New("crawler output is not a JSON array")
)

// Parse decodes the crawler's JSON array, rewrites relative product URLs against origin,
// and indexes the products by id. It also returns how many elements were dropped for
// lacking an id.
func Parse(data []byte, origin string) (watch.ProductMap, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, errEmptyOutput
	}
	if trimmed[0] != '[' {
		return nil, 0, errNotArray
	}
	var items []watch.Product
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, 0, fmt.Errorf("decode crawler output: %w", err)
	}
	products := make(watch.ProductMap, len(items))
	skipped := 0
	for _, item := range items {
		if item.ID == "" {
			skipped++
			continue
		}
		item.URL = absolutize(origin, item.URL)
		products[item.ID] = item
	}
	return products, skipped, nil
}
