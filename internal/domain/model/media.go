package model

// MediaItem is a single entry of a provider "recent items" listing.
// Listings are ordered newest-first.
type MediaItem struct {
	ID       string
	Type     string
	MediaURL string
}
