// Package card defines the address-book record type shared by every side
// of a sync: the local filesystem, the CardDAV server, and the on-disk
// snapshot of the last successful sync.
package card

import (
	"encoding/json"
	"time"
)

// Card is one address-book entry, identified by a stable id.
//
// Two Cards with the same ID on different sides denote the same logical
// record. Equality for merge purposes is structural on
// (ID, ETag, Date, Content); ordering is by Date only.
type Card struct {
	// ID is the stable identifier: the .vcf filename stem locally, or
	// the URL stem on the CardDAV server.
	ID string
	// ETag is the opaque server-issued version token. Empty until the
	// card has been pushed to the server at least once.
	ETag string
	// Date is the last-modified timestamp: file mtime locally, or the
	// parsed Last-Modified / getlastmodified header remotely.
	Date time.Time
	// Content is the raw vCard text. May be empty when only metadata
	// (id/etag/date) is known, e.g. a freshly enumerated local file
	// whose body hasn't been read yet.
	Content string
	// Path locates the card on the local filesystem. Empty on other
	// sides.
	Path string
	// URL locates the card on the CardDAV server. Empty on other sides.
	URL string
}

// Equal reports whether two cards are identical for merge purposes.
func (c Card) Equal(other Card) bool {
	return c.ID == other.ID &&
		c.ETag == other.ETag &&
		c.Date.Equal(other.Date) &&
		c.Content == other.Content
}

// Before reports whether c's date strictly precedes other's.
func (c Card) Before(other Card) bool {
	return c.Date.Before(other.Date)
}

// Map is id -> Card. Key uniqueness is enforced by the map; insertion
// order is irrelevant.
type Map map[string]Card

// Clone returns a shallow copy of m, safe to mutate independently.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for id, c := range m {
		out[id] = c
	}
	return out
}

// jsonCard is the on-disk snapshot representation: dates are serialized
// as RFC 2822 strings to match the CardDAV wire format (spec §6) so a
// snapshot and a REPORT response use the same date grammar.
type jsonCard struct {
	ID      string `json:"id"`
	ETag    string `json:"etag"`
	Date    string `json:"date"`
	Content string `json:"content"`
	Path    string `json:"path,omitempty"`
	URL     string `json:"url,omitempty"`
}

// MarshalJSON implements json.Marshaler, encoding Date as RFC 2822.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonCard{
		ID:      c.ID,
		ETag:    c.ETag,
		Date:    c.Date.Format(time.RFC1123Z),
		Content: c.Content,
		Path:    c.Path,
		URL:     c.URL,
	})
}

// UnmarshalJSON implements json.Unmarshaler, parsing Date as RFC 2822.
// A missing or empty date decodes to the zero time.
func (c *Card) UnmarshalJSON(data []byte) error {
	var j jsonCard
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	var date time.Time
	if j.Date != "" {
		d, err := time.Parse(time.RFC1123Z, j.Date)
		if err != nil {
			return err
		}
		date = d
	}
	c.ID = j.ID
	c.ETag = j.ETag
	c.Date = date
	c.Content = j.Content
	c.Path = j.Path
	c.URL = j.URL
	return nil
}
