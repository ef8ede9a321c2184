// Package webhook delivers new-product cards to a Discord-style webhook.
package webhook

import (
	"time"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// emptyValue replaces blank field values, which the webhook rejects.
const emptyValue = "-"

// Branding is the fixed author block shown on every card.
type Branding struct {
	Name    string
	URL     string
	IconURL string
}

// Embed is one card of a webhook message.
type Embed struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Color     *int      `json:"color"`
	Fields    []Field   `json:"fields"`
	Author    Author    `json:"author"`
	Timestamp string    `json:"timestamp"`
	Thumbnail Thumbnail `json:"thumbnail"`
}

// Field is an inline name/value pair on a card.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Author is the branding header of a card.
type Author struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	IconURL string `json:"icon_url"`
}

// Thumbnail is the card's product image.
type Thumbnail struct {
	URL string `json:"url"`
}

// Message is the body of one webhook POST.
type Message struct {
	Content     *string  `json:"content"`
	Embeds      []Embed  `json:"embeds"`
	Attachments []string `json:"attachments"`
}

// Format renders product as a card stamped with now.
func Format(product watch.Product, branding Branding, now time.Time) Embed {
	return Embed{
		Title: product.Name,
		URL:   product.URL,
		Fields: []Field{
			{Name: "Release date", Value: orDash(product.Date), Inline: true},
			{Name: "Category", Value: orDash(product.DeepestCategory()), Inline: true},
			{Name: "Price", Value: orDash(product.Price), Inline: true},
		},
		Author: Author{
			Name:    branding.Name,
			URL:     branding.URL,
			IconURL: branding.IconURL,
		},
		Timestamp: now.UTC().Format(timestampLayout),
		Thumbnail: Thumbnail{URL: product.Image},
	}
}

func orDash(v string) string {
	if v == "" {
		return emptyValue
	}
	return v
}

// Batch splits cards into consecutive groups of at most size, preserving order.
func Batch(cards []Embed, size int) [][]Embed {
	if size <= 0 {
		size = 1
	}
	batches := make([][]Embed, 0, (len(cards)+size-1)/size)
	for start := 0; start < len(cards); start += size {
		end := min(start+size, len(cards))
		batches = append(batches, cards[start:end])
	}
	return batches
}
