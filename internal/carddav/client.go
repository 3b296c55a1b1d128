package carddav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/rs/zerolog"

	"github.com/cardamom-sync/cardamom/internal/card"
	"github.com/cardamom-sync/cardamom/internal/cdaverr"
	"github.com/cardamom-sync/cardamom/internal/logging"
)

// Custom HTTP methods: PROPFIND and REPORT are not part of net/http's
// fixed method set and must be injected by raw name (spec §4.3.1, §9
// "Wire method construction").
const (
	methodPropfind = "PROPFIND"
	methodReport   = "REPORT"
)

// Client walks the CardDAV discovery chain and performs per-card CRUD
// against the resolved addressbook.
type Client struct {
	http webdav.HTTPClient
	base *url.URL
	log  zerolog.Logger
}

// NewClient builds a Client rooted at https://host:port/, authenticated
// with HTTP Basic using login/password. Scheme is always https (spec
// §6, "Scheme: https:// only").
func NewClient(host string, port int, login, password string) (*Client, error) {
	raw := fmt.Sprintf("https://%s:%d/", host, port)
	base, err := url.Parse(raw)
	if err != nil {
		return nil, cdaverr.Wrap(cdaverr.ErrParseURL, err)
	}

	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: 30 * time.Second}, login, password)

	return &Client{
		http: httpClient,
		base: base,
		log:  logging.WithComponent("carddav-client"),
	}, nil
}

// UseScheme overrides the client's URL scheme. NewClient always builds
// https://, per spec; this exists so tests can point a Client at a
// plain-http httptest.Server without reimplementing discovery.
func (c *Client) UseScheme(scheme string) {
	c.base.Scheme = scheme
}

// resolve joins p against the client's base URL.
func (c *Client) resolve(p string) string {
	u := *c.base
	u.Path = path.Join(u.Path, p)
	return u.String()
}

func (c *Client) request(method, urlStr, contentType string, body string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest(method, urlStr, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

// AddressbookPath runs the three-step discovery walk described in spec
// §4.3.1 and returns the path of the resolved addressbook collection.
// Each step falls back to the previous path on an empty/missing result
// rather than failing hard; only transport and XML-decode failures are
// fatal.
func (c *Client) AddressbookPath() (string, error) {
	p := "/"

	p, err := c.resolveCurrentUserPrincipal(p)
	if err != nil {
		return "", err
	}

	p, err = c.resolveAddressbookHomeSet(p)
	if err != nil {
		return "", err
	}

	p, err = c.resolveAddressbook(p)
	if err != nil {
		return "", err
	}

	return p, nil
}

func (c *Client) resolveCurrentUserPrincipal(p string) (string, error) {
	res, err := c.request(methodPropfind, c.resolve(p), "application/xml; charset=utf-8",
		currentUserPrincipalBody, map[string]string{"Depth": "0"})
	if err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrFetchCurrentUserPrincipal, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrFetchCurrentUserPrincipal, err)
	}

	var ms Multistatus[currentUserPrincipalProp]
	if err := xml.Unmarshal(body, &ms); err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrParseCurrentUserPrincipal, err)
	}

	if len(ms.Responses) == 0 {
		c.log.Debug().Str("step", "current-user-principal").Msg("empty multistatus, inheriting path")
		return p, nil
	}
	propstat, ok := ms.Responses[0].FirstPropstat()
	if !ok || propstat.Prop.CurrentUserPrincipal.Href == "" {
		return p, nil
	}
	return propstat.Prop.CurrentUserPrincipal.Href, nil
}

func (c *Client) resolveAddressbookHomeSet(p string) (string, error) {
	res, err := c.request(methodPropfind, c.resolve(p), "application/xml; charset=utf-8",
		addressbookHomeSetBody, map[string]string{"Depth": "0"})
	if err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrFetchHomeSet, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrFetchHomeSet, err)
	}

	var ms Multistatus[addressbookHomeSetProp]
	if err := xml.Unmarshal(body, &ms); err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrParseHomeSet, err)
	}

	if len(ms.Responses) == 0 {
		c.log.Debug().Str("step", "addressbook-home-set").Msg("empty multistatus, inheriting path")
		return p, nil
	}
	propstat, ok := ms.Responses[0].FirstPropstat()
	if !ok || propstat.Prop.AddressbookHomeSet.Href == "" {
		return p, nil
	}
	return propstat.Prop.AddressbookHomeSet.Href, nil
}

func (c *Client) resolveAddressbook(p string) (string, error) {
	res, err := c.request(methodPropfind, c.resolve(p), "application/xml; charset=utf-8",
		addressbookResourcetypeBody, map[string]string{"Depth": "1"})
	if err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrFetchAddressbook, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrFetchAddressbook, err)
	}

	var ms Multistatus[resourcetypeProp]
	if err := xml.Unmarshal(body, &ms); err != nil {
		return "", cdaverr.Wrap(cdaverr.ErrParseAddressbook, err)
	}

	for _, res := range ms.Responses {
		propstat, ok := res.FirstPropstat()
		if !ok {
			continue
		}
		if propstat.Status == nil || !strings.HasSuffix(*propstat.Status, "200 OK") {
			continue
		}
		if propstat.Prop.Resourcetype.Addressbook == nil {
			continue
		}
		return res.Href, nil
	}

	c.log.Debug().Str("step", "addressbook").Msg("no matching addressbook resource, inheriting path")
	return p, nil
}

// FetchAll performs the listing REPORT (spec §4.3.4 "Select (all)") and
// returns a CardMap of every address object in the addressbook at path.
func (c *Client) FetchAll(addressbookPath string) (card.Map, error) {
	res, err := c.request(methodReport, c.resolve(addressbookPath), "application/xml; charset=utf-8",
		addressbookQueryBody, map[string]string{"Depth": "1"})
	if err != nil {
		return nil, cdaverr.Wrap(cdaverr.ErrFetchAddressData, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, cdaverr.Wrap(cdaverr.ErrFetchAddressData, err)
	}

	var ms Multistatus[addressDataProp]
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, cdaverr.Wrap(cdaverr.ErrParseAddressData, err)
	}

	cards := make(card.Map, len(ms.Responses))
	for _, res := range ms.Responses {
		propstat, ok := res.FirstPropstat()
		if !ok {
			continue
		}

		id := strings.TrimSuffix(path.Base(res.Href), path.Ext(res.Href))
		if id == "" || id == "." || id == "/" {
			return nil, cdaverr.WithID(cdaverr.ErrParseAddressDataHref, res.Href, "href has no usable stem")
		}

		if propstat.Prop.GetLastModified == nil {
			return nil, cdaverr.Wrap(cdaverr.ErrParseAddressDataLastModified, fmt.Errorf("id %q", id))
		}
		date, err := time.Parse(time.RFC1123Z, *propstat.Prop.GetLastModified)
		if err != nil {
			return nil, cdaverr.Wrap(cdaverr.ErrParseAddressDataLastModified, err)
		}

		content, err := decodeBody([]byte(propstat.Prop.AddressData), "text/vcard; charset=utf-8")
		if err != nil {
			return nil, cdaverr.Wrap(cdaverr.ErrParseAddressData, err)
		}

		cards[id] = card.Card{
			ID:      id,
			ETag:    propstat.Prop.GetETag,
			Date:    date,
			Content: content,
			URL:     res.Href,
		}
	}
	return cards, nil
}

func (c *Client) cardURL(addressbookPath, id string) string {
	return c.resolve(path.Join(addressbookPath, id+".vcf"))
}

// Insert performs a PUT with no precondition (spec §4.3.4 "Insert").
func (c *Client) Insert(addressbookPath string, cd card.Card) (card.Card, error) {
	res, err := c.request(http.MethodPut, c.cardURL(addressbookPath, cd.ID),
		"text/vcard; charset=utf-8", cd.Content, nil)
	if err != nil {
		return cd, cdaverr.Wrap(cdaverr.ErrInsertCard, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return cd, cdaverr.WithID(cdaverr.ErrInsertCard, cd.ID, reasonFrom(res.StatusCode, body))
	}

	if etag := res.Header.Get("ETag"); etag != "" {
		cd.ETag = etag
	}
	return cd, nil
}

// Read performs a GET (spec §4.3.4 "Select (one)").
func (c *Client) Read(addressbookPath, id string) (card.Card, error) {
	res, err := c.request(http.MethodGet, c.cardURL(addressbookPath, id), "", "", nil)
	if err != nil {
		return card.Card{}, cdaverr.Wrap(cdaverr.ErrReadCard, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return card.Card{}, cdaverr.Wrap(cdaverr.ErrReadCard, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return card.Card{}, cdaverr.WithID(cdaverr.ErrReadCard, id, reasonFrom(res.StatusCode, body))
	}

	lastModified := res.Header.Get("Last-Modified")
	date, err := time.Parse(time.RFC1123Z, lastModified)
	if err != nil {
		return card.Card{}, cdaverr.WithID(cdaverr.ErrReadCard, id, "missing or malformed Last-Modified header")
	}

	content, err := decodeBody(body, res.Header.Get("Content-Type"))
	if err != nil {
		return card.Card{}, cdaverr.WithID(cdaverr.ErrReadCard, id, err.Error())
	}

	return card.Card{
		ID:      id,
		ETag:    res.Header.Get("ETag"),
		Date:    date,
		Content: content,
		URL:     c.cardURL(addressbookPath, id),
	}, nil
}

// Update performs a PUT with If-Match when the card's etag is known
// (spec §4.3.4 "Update").
func (c *Client) Update(addressbookPath string, cd card.Card) (card.Card, error) {
	headers := map[string]string{}
	if cd.ETag != "" {
		headers["If-Match"] = cd.ETag
	}

	res, err := c.request(http.MethodPut, c.cardURL(addressbookPath, cd.ID),
		"text/vcard; charset=utf-8", cd.Content, headers)
	if err != nil {
		return cd, cdaverr.Wrap(cdaverr.ErrUpdateCard, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return cd, cdaverr.WithID(cdaverr.ErrUpdateCard, cd.ID, reasonFrom(res.StatusCode, body))
	}

	if etag := res.Header.Get("ETag"); etag != "" {
		cd.ETag = etag
	}
	return cd, nil
}

// Delete performs a DELETE with If-Match when etag is known (spec
// §4.3.4 "Delete").
func (c *Client) Delete(addressbookPath, id, etag string) error {
	headers := map[string]string{}
	if etag != "" {
		headers["If-Match"] = etag
	}

	res, err := c.request(http.MethodDelete, c.cardURL(addressbookPath, id), "", "", headers)
	if err != nil {
		return cdaverr.WithID(cdaverr.ErrDeleteCard, id, err.Error())
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return cdaverr.WithID(cdaverr.ErrDeleteCard, id, reasonFrom(res.StatusCode, body))
	}
	return nil
}

func reasonFrom(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return http.StatusText(status)
	}
	return string(trimmed)
}
