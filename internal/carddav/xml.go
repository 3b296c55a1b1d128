// Package carddav implements the discovery walk and CRUD operations
// against a CardDAV server: current-user-principal -> addressbook-home-set
// -> addressbook via PROPFIND, then per-card REPORT/GET/PUT/DELETE with
// If-Match/ETag semantics (spec §4.3).
package carddav

import "encoding/xml"

// Multistatus wraps zero-or-more Responses, generic over the prop payload
// each Response carries. It mirrors WebDAV's <multistatus> envelope and
// the original engine's generic Multistatus<T>.
type Multistatus[T any] struct {
	XMLName   xml.Name       `xml:"DAV: multistatus"`
	Responses []Response[T] `xml:"response"`
}

// Response is one <response> element: an href plus zero-or-more
// propstats.
type Response[T any] struct {
	Href      string        `xml:"href"`
	Propstats []Propstat[T] `xml:"propstat"`
}

// FirstPropstat returns the first propstat, or the zero value and false
// if there isn't one. Missing propstat elements decode to an empty
// slice, never a nil-pointer panic (spec §4.3.3 tolerance).
func (r Response[T]) FirstPropstat() (Propstat[T], bool) {
	if len(r.Propstats) == 0 {
		var zero Propstat[T]
		return zero, false
	}
	return r.Propstats[0], true
}

// Propstat is one <propstat> element: a typed prop payload plus an
// optional status line.
type Propstat[T any] struct {
	Prop   T       `xml:"prop"`
	Status *string `xml:"status"`
}

// href is shared by any prop whose payload is just {DAV:}href, which
// covers current-user-principal and addressbook-home-set.
type href struct {
	Href string `xml:"href"`
}

// currentUserPrincipalProp decodes {DAV:}current-user-principal.
type currentUserPrincipalProp struct {
	CurrentUserPrincipal href `xml:"current-user-principal"`
}

// addressbookHomeSetProp decodes
// {urn:ietf:params:xml:ns:carddav}addressbook-home-set.
type addressbookHomeSetProp struct {
	AddressbookHomeSet href `xml:"addressbook-home-set"`
}

// resourcetypeProp decodes {DAV:}resourcetype, tolerating unknown
// sibling child elements such as {DAV:}collection.
type resourcetypeProp struct {
	Resourcetype struct {
		Addressbook *struct{} `xml:"addressbook"`
	} `xml:"resourcetype"`
}

// addressDataProp decodes the getetag/getlastmodified/address-data
// triple returned by the listing REPORT.
type addressDataProp struct {
	GetETag         string  `xml:"getetag"`
	GetLastModified *string `xml:"getlastmodified"`
	AddressData     string  `xml:"address-data"`
}

const (
	currentUserPrincipalBody = `<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:current-user-principal />
  </D:prop>
</D:propfind>`

	addressbookHomeSetBody = `<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:prop>
    <C:addressbook-home-set />
  </D:prop>
</D:propfind>`

	addressbookResourcetypeBody = `<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:resourcetype />
  </D:prop>
</D:propfind>`

	addressbookQueryBody = `<C:addressbook-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:prop>
    <D:getetag />
    <D:getlastmodified />
    <C:address-data />
  </D:prop>
</C:addressbook-query>`
)
