package carddav

import (
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// decodeBody converts body to UTF-8 using the charset named in
// contentType's parameters, if any. Most CardDAV servers emit
// "text/vcard; charset=utf-8" and this is a no-op; a handful of older
// servers use a legacy charset, which this transcodes to UTF-8 (spec §6
// wire contract doesn't specify encoding interop, so this fills that
// gap defensively). A content type without a charset parameter, or
// naming a charset htmlindex doesn't know, leaves the body unchanged.
func decodeBody(body []byte, contentType string) (string, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return string(body), nil
	}

	charset := strings.ToLower(params["charset"])
	if charset == "utf-8" || charset == "utf8" || charset == "" {
		return string(body), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		// Unknown charset name: fall back to treating the body as UTF-8
		// rather than failing the whole fetch over a label mismatch.
		return string(body), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(strings.NewReader(string(body)), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
