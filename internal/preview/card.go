// Package preview fetches link-preview metadata (Open Graph cards) for
// cluster reference links and indexes it by URL.
package preview

// Card is the small title/description/image summary of a linked page.
//
// Empty string means "unavailable". A Card is always structurally valid:
// fetch and lookup failures degrade to empty fields, never to a missing card.
type Card struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"desc"`
	Image       string `json:"image"`
}

// Empty returns the well-formed empty card for url.
func Empty(url string) Card {
	return Card{URL: url}
}

// IsEmpty reports whether no metadata was resolved for the card.
func (c Card) IsEmpty() bool {
	return c.Title == "" && c.Description == "" && c.Image == ""
}
