// Package vcard validates and inspects raw vCard text before it's
// written to the local filesystem or pushed to the CardDAV server, using
// emersion/go-vcard's decoder rather than hand-rolled line scanning.
package vcard

import (
	"fmt"
	"io"
	"strings"

	govcard "github.com/emersion/go-vcard"
)

// Validate reports whether raw decodes as a single, well-formed vCard
// carrying the fields a CardDAV server expects: a VERSION and a
// formatted name.
func Validate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("vcard: empty content")
	}

	cards, err := decodeAll(raw)
	if err != nil {
		return fmt.Errorf("vcard: decode: %w", err)
	}
	if len(cards) == 0 {
		return fmt.Errorf("vcard: no card found")
	}
	if len(cards) > 1 {
		return fmt.Errorf("vcard: expected exactly one card, got %d", len(cards))
	}

	c := cards[0]
	if c.Value(govcard.FieldVersion) == "" {
		return fmt.Errorf("vcard: missing VERSION")
	}
	if c.Value(govcard.FieldFormattedName) == "" {
		return fmt.Errorf("vcard: missing FN")
	}
	return nil
}

// DisplayName returns the card's formatted name, or "" if raw doesn't
// decode or has none set. Nothing in the merge or sync path calls it.
func DisplayName(raw string) string {
	cards, err := decodeAll(raw)
	if err != nil || len(cards) == 0 {
		return ""
	}
	return cards[0].Value(govcard.FieldFormattedName)
}

func decodeAll(raw string) ([]govcard.Card, error) {
	// RFC 6350 requires CRLF line endings; be tolerant of bare LF from
	// hand-edited files.
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\n", "\r\n")

	dec := govcard.NewDecoder(strings.NewReader(normalized))
	var out []govcard.Card
	for {
		c, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
