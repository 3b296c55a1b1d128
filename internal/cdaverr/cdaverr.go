// Package cdaverr defines the sentinel error kinds used across cardamom,
// so callers can test the kind of a failure with errors.Is/errors.As
// without string-matching, while the wrapped chain still carries the
// underlying cause (os error, HTTP status, XML decode error, ...).
package cdaverr

import (
	"errors"
	"fmt"
)

// Sentinel kinds, one per spec-named error category (spec §7).
var (
	// IO errors: read/write cache, enumerate sync dir, stat a .vcf file.
	ErrReadCachedCards   = errors.New("cannot read cached cards")
	ErrReadLocalCardsDir = errors.New("cannot read local cards directory")
	ErrGetVcfMetadata    = errors.New("cannot stat vcf file")
	ErrGetVcfModified    = errors.New("cannot read vcf modification time")

	// Serialization errors: snapshot decode/encode.
	ErrParseCachedCards = errors.New("cannot parse cached cards")
	ErrSerializeCards   = errors.New("cannot serialize cards")

	// NetworkFetch errors: one per discovery/listing step, plus CRUD.
	ErrFetchCurrentUserPrincipal = errors.New("cannot fetch current-user-principal")
	ErrFetchHomeSet              = errors.New("cannot fetch addressbook-home-set")
	ErrFetchAddressbook          = errors.New("cannot fetch addressbook")
	ErrFetchAddressData          = errors.New("cannot fetch address data")
	ErrInsertCard                = errors.New("cannot insert card")
	ErrUpdateCard                = errors.New("cannot update card")

	// ProtocolParse errors: XML decode failures, malformed href, missing
	// getlastmodified.
	ErrParseCurrentUserPrincipal    = errors.New("cannot parse current-user-principal response")
	ErrParseHomeSet                 = errors.New("cannot parse addressbook-home-set response")
	ErrParseAddressbook             = errors.New("cannot parse addressbook response")
	ErrParseAddressData             = errors.New("cannot parse address-data response")
	ErrParseAddressDataHref         = errors.New("cannot parse address-data href")
	ErrParseAddressDataLastModified = errors.New("address-data response is missing getlastmodified")

	// CardOp errors: wrapped by WithID with the card id and a reason
	// string (the response body, or the status text when it's empty).
	ErrReadCard   = errors.New("cannot read card")
	ErrDeleteCard = errors.New("cannot delete card")

	// UrlParse: host/port to URL conversion.
	ErrParseURL = errors.New("cannot parse server url")

	// Unknown: reserved for truly unreachable cases, e.g. a malformed
	// custom HTTP method name.
	ErrUnknown = errors.New("unknown error")
)

// WithPath wraps err with kind and the offending filesystem path.
func WithPath(kind error, path string, cause error) error {
	return fmt.Errorf("%w: %s: %w", kind, path, cause)
}

// WithID wraps err with kind and the offending card id plus a reason
// string, matching spec's ReadCardError(id, reason)/DeleteCardError(id,
// reason) shape.
func WithID(kind error, id, reason string) error {
	return fmt.Errorf("%w %q: %s", kind, id, reason)
}

// Wrap wraps err with kind and an arbitrary cause.
func Wrap(kind error, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
