package provider

import "strings"

// Exchange is a market identifier that determines the quote page suffix.
type Exchange string

const (
	USA  Exchange = "USA"
	SGX  Exchange = "SGX"
	HKEX Exchange = "HKEX"
	XSSC Exchange = "XSSC"
)

// suffixes maps each exchange to the ticker suffix used by the quote pages.
var suffixes = map[Exchange]string{
	USA:  "",
	SGX:  ".SI",
	HKEX: ".HK",
	XSSC: ".SS",
}

// Exchanges lists the supported exchanges in a stable order.
func Exchanges() []Exchange { return []Exchange{USA, SGX, HKEX, XSSC} }

// ParseExchange normalizes code and reports whether it is a known exchange.
func ParseExchange(code string) (Exchange, bool) {
	e := Exchange(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := suffixes[e]; !ok {
		return "", false
	}
	return e, true
}

// Suffix returns the ticker suffix for e. Unknown exchanges get the USA form.
func (e Exchange) Suffix() string { return suffixes[e] }
