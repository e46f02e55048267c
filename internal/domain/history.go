package domain

import "time"

// HistoryEntry records one successfully completed download.
type HistoryEntry struct {
	ID       string    `json:"id"`
	Platform Platform  `json:"platform"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	MediaURL string    `json:"media_url,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// HistoryCap is the maximum number of retained history entries. Appending
// beyond the cap evicts the oldest entries.
const HistoryCap = 50
