package syncengine

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cardamom-sync/cardamom/internal/carddav"
	"github.com/cardamom-sync/cardamom/internal/remotestore"
)

var fixedDate = time.Date(2020, 1, 19, 0, 0, 0, 0, time.UTC)

// fakeRemote simulates just enough of a CardDAV server -- discovery plus
// REPORT/PUT -- to drive an Engine.Run end to end without a live server.
type fakeRemote struct {
	mux      *http.ServeMux
	cards    map[string]string
	etags    map[string]string
	lastMod  map[string]string
	nextETag int
}

func newFakeRemote() *fakeRemote {
	fr := &fakeRemote{
		mux:     http.NewServeMux(),
		cards:   map[string]string{},
		etags:   map[string]string{},
		lastMod: map[string]string{},
	}
	fr.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<multistatus xmlns="DAV:">
  <response>
    <href>/principals/me/</href>
    <propstat>
      <prop><current-user-principal><href>/principals/me/</href></current-user-principal></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`)
	})
	fr.mux.HandleFunc("/principals/me/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <response>
    <href>/addressbooks/me/</href>
    <propstat>
      <prop><C:addressbook-home-set><href>/addressbooks/me/</href></C:addressbook-home-set></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`)
	})
	fr.mux.HandleFunc("/addressbooks/me/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <response>
    <href>/addressbooks/me/contacts/</href>
    <propstat>
      <prop><resourcetype><collection/><C:addressbook/></resourcetype></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`)
	})
	fr.mux.HandleFunc("/addressbooks/me/contacts/", fr.handleAddressbook)
	return fr
}

func (fr *fakeRemote) handleAddressbook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "REPORT":
		var sb strings.Builder
		sb.WriteString(`<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">`)
		for id, content := range fr.cards {
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
</response>`, id, fr.etags[id], fr.lastMod[id], content))
		}
		sb.WriteString(`</multistatus>`)
		fmt.Fprint(w, sb.String())
	case http.MethodPut:
		id := strings.TrimSuffix(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], ".vcf")
		body, _ := io.ReadAll(r.Body)
		fr.cards[id] = string(body)
		fr.nextETag++
		etag := fmt.Sprintf("etag-%d", fr.nextETag)
		fr.etags[id] = etag
		// A real server stamps its own Last-Modified on PUT; this fake
		// uses the same fixed reference time the test seeds the local
		// file with, so the two sides agree without wall-clock skew.
		fr.lastMod[id] = fixedDate.Format(time.RFC1123Z)
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T, srv *httptest.Server) *remotestore.Store {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	var port int
	if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
		t.Fatalf("parse port: %v", err)
	}
	client, err := carddav.NewClient(u.Hostname(), port, "user", "pass")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.UseScheme(u.Scheme)

	s, err := remotestore.Open(client)
	if err != nil {
		t.Fatalf("remotestore.Open: %v", err)
	}
	return s
}

func writeLocalCard(t *testing.T, dir, id, content string, date time.Time) {
	t.Helper()
	path := filepath.Join(dir, id+".vcf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write local card: %v", err)
	}
	if err := os.Chtimes(path, date, date); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestRunPushesNewLocalCardToRemote(t *testing.T) {
	dir := t.TempDir()
	writeLocalCard(t, dir, "a", "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Test\r\nEND:VCARD\r\n", fixedDate)

	fr := newFakeRemote()
	srv := httptest.NewServer(fr.mux)
	defer srv.Close()

	engine := New(dir, newTestStore(t, srv))
	result, err := engine.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Hunks) == 0 {
		t.Fatal("expected at least one hunk for a newly added local card")
	}
	if _, ok := fr.cards["a"]; !ok {
		t.Fatal("expected card to be pushed to the remote")
	}

	if _, err := os.Stat(filepath.Join(dir, ".local")); err != nil {
		t.Fatalf("expected .local snapshot to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".remote")); err != nil {
		t.Fatalf("expected .remote snapshot to be written: %v", err)
	}
}

func TestRunDryRunComputesHunksWithoutMutating(t *testing.T) {
	dir := t.TempDir()
	writeLocalCard(t, dir, "a", "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Test\r\nEND:VCARD\r\n", fixedDate)

	fr := newFakeRemote()
	srv := httptest.NewServer(fr.mux)
	defer srv.Close()

	engine := New(dir, newTestStore(t, srv))
	result, err := engine.Run(Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Hunks) == 0 {
		t.Fatal("expected dry-run to still report the computed hunks")
	}
	if _, ok := fr.cards["a"]; ok {
		t.Fatal("dry-run must not push to the remote")
	}
	// cache.Load create-if-missing semantics still touch the snapshot
	// files (reading Prev state is required to compute the patch even
	// in dry-run mode), but Save is never reached, so both stay empty.
	for _, name := range []string{".local", ".remote"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() != 0 {
			t.Fatalf("dry-run must not write snapshot content to %s, got size %d", name, info.Size())
		}
	}
}

func TestRunIsIdempotentOnSecondPass(t *testing.T) {
	dir := t.TempDir()
	writeLocalCard(t, dir, "a", "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Test\r\nEND:VCARD\r\n", fixedDate)

	fr := newFakeRemote()
	srv := httptest.NewServer(fr.mux)
	defer srv.Close()

	store := newTestStore(t, srv)
	engine := New(dir, store)

	if _, err := engine.Run(Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	result, err := engine.Run(Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(result.Hunks) != 0 {
		t.Fatalf("expected no hunks on a converged second run, got %v", result.Hunks)
	}
}
