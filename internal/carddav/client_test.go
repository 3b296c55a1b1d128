package carddav

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cardamom-sync/cardamom/internal/card"
)

func TestMultistatusDecodeEmpty(t *testing.T) {
	var ms Multistatus[currentUserPrincipalProp]
	if err := xml.Unmarshal([]byte(`<multistatus xmlns="DAV:" />`), &ms); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(ms.Responses) != 0 {
		t.Fatalf("expected zero responses, got %d", len(ms.Responses))
	}
}

func TestMultistatusDecodeMissingPropstat(t *testing.T) {
	doc := `<multistatus xmlns="DAV:">
  <response><href>/foo</href></response>
</multistatus>`
	var ms Multistatus[currentUserPrincipalProp]
	if err := xml.Unmarshal([]byte(doc), &ms); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(ms.Responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(ms.Responses))
	}
	if len(ms.Responses[0].Propstats) != 0 {
		t.Fatalf("expected empty propstat list, got %d", len(ms.Responses[0].Propstats))
	}
	if _, ok := ms.Responses[0].FirstPropstat(); ok {
		t.Fatal("expected FirstPropstat to report false")
	}
}

func TestMultistatusDecodeIgnoresUnknownChildren(t *testing.T) {
	doc := `<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <response>
    <href>/addressbooks/me/contacts/</href>
    <propstat>
      <prop>
        <resourcetype><collection/><C:addressbook/></resourcetype>
        <displayname>ignored</displayname>
      </prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`
	var ms Multistatus[resourcetypeProp]
	if err := xml.Unmarshal([]byte(doc), &ms); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	propstat, ok := ms.Responses[0].FirstPropstat()
	if !ok {
		t.Fatal("expected a propstat")
	}
	if propstat.Prop.Resourcetype.Addressbook == nil {
		t.Fatal("expected addressbook resourcetype to be recognized despite sibling elements")
	}
}

// fakeServer simulates a minimal CardDAV server supporting the
// discovery walk and CRUD operations, used to test Client end to end
// without a real network dependency.
type fakeServer struct {
	mux      *http.ServeMux
	cards    map[string]string // id -> content
	etags    map[string]string
	lastMod  map[string]string
	nextETag int
}

func newFakeServer() *fakeServer {
	fs := &fakeServer{
		mux:     http.NewServeMux(),
		cards:   map[string]string{},
		etags:   map[string]string{},
		lastMod: map[string]string{},
	}
	fs.mux.HandleFunc("/", fs.handleRoot)
	fs.mux.HandleFunc("/principals/me/", fs.handlePrincipal)
	fs.mux.HandleFunc("/addressbooks/me/", fs.handleHomeSet)
	fs.mux.HandleFunc("/addressbooks/me/contacts/", fs.handleAddressbook)
	return fs
}

func (fs *fakeServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != methodPropfind {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fmt.Fprint(w, `<multistatus xmlns="DAV:">
  <response>
    <href>/principals/me/</href>
    <propstat>
      <prop><current-user-principal><href>/principals/me/</href></current-user-principal></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`)
}

func (fs *fakeServer) handlePrincipal(w http.ResponseWriter, r *http.Request) {
	if r.Method != methodPropfind {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fmt.Fprint(w, `<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <response>
    <href>/addressbooks/me/</href>
    <propstat>
      <prop><C:addressbook-home-set><href>/addressbooks/me/</href></C:addressbook-home-set></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`)
}

func (fs *fakeServer) handleHomeSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != methodPropfind {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fmt.Fprint(w, `<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <response>
    <href>/addressbooks/me/contacts/</href>
    <propstat>
      <prop><resourcetype><collection/><C:addressbook/></resourcetype></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`)
}

func (fs *fakeServer) handleAddressbook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case methodReport:
		var sb strings.Builder
		sb.WriteString(`<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">`)
		for id, content := range fs.cards {
			sb.WriteString(fmt.Sprintf(`<response>
  <href>/addressbooks/me/contacts/%s.vcf</href>
  <propstat>
    <prop>
      <getetag>%s</getetag>
      <getlastmodified>%s</getlastmodified>
      <C:address-data>%s</C:address-data>
    </prop>
    <status>HTTP/1.1 200 OK</status>
  </propstat>
</response>`, id, fs.etags[id], fs.lastMod[id], content))
		}
		sb.WriteString(`</multistatus>`)
		fmt.Fprint(w, sb.String())
	case http.MethodPut:
		id := idFromPath(r.URL.Path)
		body, _ := io.ReadAll(r.Body)

		if etag := r.Header.Get("If-Match"); etag != "" && fs.etags[id] != "" && etag != fs.etags[id] {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}

		fs.cards[id] = string(body)
		fs.nextETag++
		newETag := fmt.Sprintf("etag-%d", fs.nextETag)
		fs.etags[id] = newETag
		fs.lastMod[id] = "Sun, 19 Jan 2020 00:00:00 +0000"
		w.Header().Set("ETag", newETag)
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		id := idFromPath(r.URL.Path)
		content, ok := fs.cards[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "not found")
			return
		}
		w.Header().Set("ETag", fs.etags[id])
		w.Header().Set("Last-Modified", fs.lastMod[id])
		fmt.Fprint(w, content)
	case http.MethodDelete:
		id := idFromPath(r.URL.Path)
		if _, ok := fs.cards[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if etag := r.Header.Get("If-Match"); etag != "" && fs.etags[id] != etag {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		delete(fs.cards, id)
		delete(fs.etags, id)
		delete(fs.lastMod, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func idFromPath(p string) string {
	base := p[strings.LastIndex(p, "/")+1:]
	return strings.TrimSuffix(base, ".vcf")
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	c, err := NewClient(u.Hostname(), mustPort(t, u), "user", "pass")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	// Point the client back at the httptest server's http:// scheme
	// since NewClient always builds https://.
	c.base.Scheme = u.Scheme
	return c
}

func mustPort(t *testing.T, u *url.URL) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(u.Port(), "%d", &port)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return port
}

func TestDiscoveryWalk(t *testing.T) {
	fs := newFakeServer()
	srv := httptest.NewServer(fs.mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	p, err := c.AddressbookPath()
	if err != nil {
		t.Fatalf("AddressbookPath: %v", err)
	}
	if p != "/addressbooks/me/contacts/" {
		t.Fatalf("unexpected addressbook path: %q", p)
	}
}

func TestCRUDRoundTrip(t *testing.T) {
	fs := newFakeServer()
	srv := httptest.NewServer(fs.mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	const abPath = "/addressbooks/me/contacts/"

	inserted, err := c.Insert(abPath, card.Card{ID: "a", Content: "BEGIN:VCARD\r\nFN:Test\r\nEND:VCARD\r\n"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted.ETag == "" {
		t.Fatal("expected non-empty etag after insert")
	}

	read, err := c.Read(abPath, "a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read.ETag != inserted.ETag || read.Content != inserted.Content {
		t.Fatalf("read mismatch: %+v vs inserted %+v", read, inserted)
	}

	inserted.Content = "BEGIN:VCARD\r\nFN:Updated\r\nEND:VCARD\r\n"
	updated, err := c.Update(abPath, inserted)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ETag == inserted.ETag {
		t.Fatal("expected etag to change after update")
	}

	if err := c.Delete(abPath, "a", updated.ETag); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := c.Read(abPath, "a"); err == nil {
		t.Fatal("expected error reading deleted card")
	}
}

func TestFetchAllMissingLastModifiedIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contacts/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <response>
    <href>/contacts/a.vcf</href>
    <propstat>
      <prop>
        <getetag>"1"</getetag>
        <C:address-data>BEGIN:VCARD&#13;&#10;END:VCARD&#13;&#10;</C:address-data>
      </prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.FetchAll("/contacts/")
	if err == nil {
		t.Fatal("expected missing getlastmodified to be fatal")
	}
}
