// Package extract pulls a last traded price out of a fetched quote page.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means the price element or its numeric text was not present.
	ErrNotFound = errors.New("price not found")
	// ErrMalformed means the matched text did not parse as a number.
	ErrMalformed = errors.New("price malformed")
)

// Default markers for the quote page price element.
const (
	DefaultMarker  = `data-field="regularMarketPrice"`
	DefaultClosing = `</fin-streamer>`
)

// Extractor turns a page body into a price.
type Extractor interface {
	Extract(body string) (float64, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(body string) (float64, error)

func (f ExtractorFunc) Extract(body string) (float64, error) { return f(body) }

// numericText is the shortest run of digits, periods and commas enclosed by
// the element's angle brackets, e.g. ">1,001.50<".
var numericText = regexp.MustCompile(`>[0-9.,]+?<`)

// Pattern is a two stage text extractor. The outer stage isolates the
// shortest span from marker to the next closing tag; the inner stage takes the
// first bracketed number inside that span.
type Pattern struct {
	outer *regexp.Regexp
	inner *regexp.Regexp
}

// NewPattern builds a Pattern. Empty arguments fall back to the defaults.
func NewPattern(marker, closing string) (*Pattern, error) {
	if marker == "" {
		marker = DefaultMarker
	}
	if closing == "" {
		closing = DefaultClosing
	}
	outer, err := regexp.Compile(`(?s)` + regexp.QuoteMeta(marker) + `.*?` + regexp.QuoteMeta(closing))
	if err != nil {
		return nil, fmt.Errorf("compile marker pattern: %w", err)
	}
	return &Pattern{outer: outer, inner: numericText}, nil
}

// Extract implements Extractor.
func (p *Pattern) Extract(body string) (float64, error) {
	span := p.outer.FindString(body)
	if span == "" {
		return 0, ErrNotFound
	}
	text := p.inner.FindString(span)
	if text == "" {
		return 0, ErrNotFound
	}
	return parsePrice(text)
}

func parsePrice(text string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", "<", "", ">", "").Replace(text)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}
	return v, nil
}
