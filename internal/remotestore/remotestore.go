// Package remotestore produces the remote side's current ("next") card
// map by running the CardDAV discovery walk once and listing the
// resolved addressbook (spec §4.5 step 2).
package remotestore

import (
	"github.com/cardamom-sync/cardamom/internal/card"
	"github.com/cardamom-sync/cardamom/internal/carddav"
)

// Store binds a CardDAV client to the addressbook path resolved for it,
// so repeated Next/Insert/Update/Delete calls don't re-run discovery.
type Store struct {
	client          *carddav.Client
	addressbookPath string
}

// Open runs the discovery walk against client and returns a Store bound
// to the resolved addressbook.
func Open(client *carddav.Client) (*Store, error) {
	p, err := client.AddressbookPath()
	if err != nil {
		return nil, err
	}
	return &Store{client: client, addressbookPath: p}, nil
}

// Next returns the remote side's current card map.
func (s *Store) Next() (card.Map, error) {
	return s.client.FetchAll(s.addressbookPath)
}

// Insert pushes a new card to the remote addressbook.
func (s *Store) Insert(c card.Card) (card.Card, error) {
	return s.client.Insert(s.addressbookPath, c)
}

// Update pushes a modified card to the remote addressbook.
func (s *Store) Update(c card.Card) (card.Card, error) {
	return s.client.Update(s.addressbookPath, c)
}

// Delete removes a card from the remote addressbook. etag may be empty
// if the caller has no known precondition to assert.
func (s *Store) Delete(id, etag string) error {
	return s.client.Delete(s.addressbookPath, id, etag)
}
