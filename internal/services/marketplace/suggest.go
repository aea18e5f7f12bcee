package marketplace

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"strings"

	"marketscout/internal/services"
)

// Autosuggest returns the catalog's search hints for term, in catalog order.
// An empty list is a valid answer.
func (c *Client) Autosuggest(ctx context.Context, term, country string) ([]string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, services.Wrap(services.ErrValidation, "marketplace", "suggest", "term is empty", nil)
	}
	params := url.Values{}
	params.Set("clientApplication", "Software")
	params.Set("term", term)
	params.Set("cc", c.country(country))

	body, err := c.get(ctx, "suggest", c.cfg.SuggestURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	hints, err := parseHints(body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "marketplace", "suggest", "decode hints", err)
	}
	return hints, nil
}

// parseHints scans a property-list document for <key>term</key> entries and
// returns the <string> value following each one.
func parseHints(body []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.Strict = false

	var (
		hints    []string
		seen     = make(map[string]struct{})
		element  string
		lastKey  string
		wantTerm bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			element = t.Name.Local
		case xml.EndElement:
			if t.Name.Local == "key" {
				wantTerm = lastKey == "term"
			} else if t.Name.Local == "string" {
				wantTerm = false
			}
			element = ""
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			switch element {
			case "key":
				lastKey = text
			case "string":
				if wantTerm && text != "" {
					if _, dup := seen[text]; !dup {
						seen[text] = struct{}{}
						hints = append(hints, text)
					}
				}
			}
		}
	}
	return hints, nil
}
