package watch

import (
	"sort"
	"time"
)

// Topic identifies one watched search. Category is empty when the search is not scoped.
type Topic struct {
	Keyword  string `json:"keyword" mapstructure:"keyword"`
	Category string `json:"category,omitempty" mapstructure:"category"`
	// Key overrides the derived storage key. Only the legacy single-watch setup uses it.
	Key string `json:"key,omitempty" mapstructure:"key"`
}

// String renders the topic for logs.
func (t Topic) String() string {
	if t.Category == "" {
		return "keyword=" + t.Keyword
	}
	return "keyword=" + t.Keyword + " category=" + t.Category
}

// Category is one breadcrumb entry attached to a product, from broadest to deepest.
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Product is a single catalog listing as emitted by the crawler.
type Product struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Date       string     `json:"date"`
	Price      string     `json:"price"`
	Image      string     `json:"image"`
	Categories []Category `json:"categories"`
}

// DeepestCategory returns the most specific category name, or "" when there is none.
func (p Product) DeepestCategory() string {
	if len(p.Categories) == 0 {
		return ""
	}
	return p.Categories[len(p.Categories)-1].Name
}

// ProductMap is a catalog snapshot for one topic keyed by product id.
type ProductMap map[string]Product

// IDs returns the snapshot's product ids in ascending order.
func (m ProductMap) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TopicOutcome describes how a single topic fared within a cycle.
type TopicOutcome string

// Topic outcomes recorded in a CycleReport.
const (
	OutcomeUnchanged TopicOutcome = "unchanged"
	OutcomeNotified  TopicOutcome = "notified"
	OutcomeBaselined TopicOutcome = "baselined"
	OutcomeFailed    TopicOutcome = "failed"
)

// TopicResult is the per-topic entry of a CycleReport.
type TopicResult struct {
	Topic    Topic        `json:"topic"`
	Key      string       `json:"key"`
	Outcome  TopicOutcome `json:"outcome"`
	Added    int          `json:"added"`
	Notified int          `json:"notified"`
	Error    string       `json:"error,omitempty"`
	err      error
}

// Err returns the error that failed the topic, if any.
func (r TopicResult) Err() error {
	return r.err
}

// WithErr marks the result as failed with err.
func (r TopicResult) WithErr(err error) TopicResult {
	r.Outcome = OutcomeFailed
	r.err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// CycleStatus summarizes a whole cycle.
type CycleStatus string

// Cycle statuses.
const (
	CycleSucceeded CycleStatus = "succeeded"
	CyclePartial   CycleStatus = "partial"
	CycleFailed    CycleStatus = "failed"
	CycleEmpty     CycleStatus = "empty"
)

// CycleReport records one pass over some or all topics.
type CycleReport struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started_at"`
	Finished time.Time     `json:"finished_at"`
	Results  []TopicResult `json:"results"`
}

// Failed returns the results of topics whose run failed.
func (r CycleReport) Failed() []TopicResult {
	var out []TopicResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Status classifies the cycle: failed when every topic failed, partial when some did.
func (r CycleReport) Status() CycleStatus {
	failed := len(r.Failed())
	switch {
	case len(r.Results) == 0:
		return CycleEmpty
	case failed == 0:
		return CycleSucceeded
	case failed == len(r.Results):
		return CycleFailed
	default:
		return CyclePartial
	}
}

// Notified sums the cards delivered across all topics.
func (r CycleReport) Notified() int {
	total := 0
	for _, res := range r.Results {
		total += res.Notified
	}
	return total
}
