package restcountries

import (
	"net/url"
	"sort"
	"strings"
)

// Country is the normalized record atlas works with. It is treated as an
// immutable value once decoded.
type Country struct {
	Code       string     `json:"cca3"`
	Name       Name       `json:"name"`
	Capital    []string   `json:"capital,omitempty"`
	Population int64      `json:"population"`
	Region     string     `json:"region"`
	Subregion  string     `json:"subregion,omitempty"`
	Flags      Flags      `json:"flags"`
	Borders    []string   `json:"borders,omitempty"`
	Currencies []Currency `json:"currencies,omitempty"`
	Languages  []Language `json:"languages,omitempty"`
	TLD        []string   `json:"tld,omitempty"`
	Maps       Maps       `json:"maps"`
}

// Name groups the display names of a country.
type Name struct {
	Common   string       `json:"common"`
	Official string       `json:"official"`
	Native   []NativeName `json:"native,omitempty"`
}

// NativeName is a country name in one of its own languages.
type NativeName struct {
	Lang     string `json:"lang"`
	Common   string `json:"common"`
	Official string `json:"official"`
}

// Flags points at flag images.
type Flags struct {
	PNG string `json:"png,omitempty"`
	SVG string `json:"svg,omitempty"`
	Alt string `json:"alt,omitempty"`
}

// Currency is one legal tender of a country.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
}

// Language is one official language of a country.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Maps holds external map links published by the API.
type Maps struct {
	GoogleMaps     string `json:"googleMaps,omitempty"`
	OpenStreetMaps string `json:"openStreetMaps,omitempty"`
}

const notAvailable = "N/A"

// CapitalOrNA returns the first capital or N/A.
func (c Country) CapitalOrNA() string {
	if len(c.Capital) == 0 || strings.TrimSpace(c.Capital[0]) == "" {
		return notAvailable
	}
	return c.Capital[0]
}

// SubregionOrNA returns the subregion or N/A.
func (c Country) SubregionOrNA() string {
	if strings.TrimSpace(c.Subregion) == "" {
		return notAvailable
	}
	return c.Subregion
}

// NativeName returns the first native common name, falling back to the
// official native name and then the common English name.
func (c Country) NativeName() string {
	if len(c.Name.Native) == 0 {
		return c.Name.Common
	}
	first := c.Name.Native[0]
	switch {
	case first.Common != "":
		return first.Common
	case first.Official != "":
		return first.Official
	default:
		return c.Name.Common
	}
}

// CurrencySummary renders "Euro (€), ..." or N/A.
func (c Country) CurrencySummary() string {
	if len(c.Currencies) == 0 {
		return notAvailable
	}
	parts := make([]string, 0, len(c.Currencies))
	for _, cur := range c.Currencies {
		symbol := cur.Symbol
		if symbol == "" {
			symbol = cur.Code
		}
		parts = append(parts, cur.Name+" ("+symbol+")")
	}
	return strings.Join(parts, ", ")
}

// LanguageSummary renders a comma separated language list or N/A.
func (c Country) LanguageSummary() string {
	if len(c.Languages) == 0 {
		return notAvailable
	}
	parts := make([]string, 0, len(c.Languages))
	for _, lang := range c.Languages {
		parts = append(parts, lang.Name)
	}
	return strings.Join(parts, ", ")
}

// TLDSummary renders the top level domains or N/A.
func (c Country) TLDSummary() string {
	if len(c.TLD) == 0 {
		return notAvailable
	}
	return strings.Join(c.TLD, ", ")
}

// MapEmbedURL builds the embeddable map address for the country's display
// name. Without an API key the keyless embed endpoint is used.
func (c Country) MapEmbedURL(key string) string {
	q := url.QueryEscape(c.Name.Common)
	if strings.TrimSpace(key) == "" {
		return "https://www.google.com/maps?q=" + q + "&output=embed"
	}
	return "https://www.google.com/maps/embed/v1/place?key=" + url.QueryEscape(key) + "&q=" + q
}

// SortByName orders countries by common name, case-insensitively.
func SortByName(countries []Country) {
	sort.SliceStable(countries, func(i, j int) bool {
		a := strings.ToLower(countries[i].Name.Common)
		b := strings.ToLower(countries[j].Name.Common)
		if a != b {
			return a < b
		}
		return countries[i].Code < countries[j].Code
	})
}

// countryPayload mirrors the REST Countries v3.1 wire format.
type countryPayload struct {
	Name struct {
		Common     string                       `json:"common"`
		Official   string                       `json:"official"`
		NativeName map[string]nativeNamePayload `json:"nativeName"`
	} `json:"name"`
	Capital    []string `json:"capital"`
	Population int64    `json:"population"`
	Region     string   `json:"region"`
	Subregion  string   `json:"subregion"`
	Flags      struct {
		PNG string `json:"png"`
		SVG string `json:"svg"`
		Alt string `json:"alt"`
	} `json:"flags"`
	CCA3       string                     `json:"cca3"`
	Borders    []string                   `json:"borders"`
	Currencies map[string]currencyPayload `json:"currencies"`
	Languages  map[string]string          `json:"languages"`
	TLD        []string                   `json:"tld"`
	Maps       struct {
		GoogleMaps     string `json:"googleMaps"`
		OpenStreetMaps string `json:"openStreetMaps"`
	} `json:"maps"`
}

type nativeNamePayload struct {
	Official string `json:"official"`
	Common   string `json:"common"`
}

type currencyPayload struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// normalize converts a wire record. ok is false for records atlas cannot
// key or display.
func (p countryPayload) normalize() (Country, bool) {
	code := strings.ToUpper(strings.TrimSpace(p.CCA3))
	common := strings.TrimSpace(p.Name.Common)
	if code == "" || common == "" {
		return Country{}, false
	}

	c := Country{
		Code: code,
		Name: Name{
			Common:   common,
			Official: strings.TrimSpace(p.Name.Official),
		},
		Capital:    cleanStrings(p.Capital),
		Population: p.Population,
		Region:     strings.TrimSpace(p.Region),
		Subregion:  strings.TrimSpace(p.Subregion),
		Flags:      Flags{PNG: p.Flags.PNG, SVG: p.Flags.SVG, Alt: p.Flags.Alt},
		TLD:        cleanStrings(p.TLD),
		Maps:       Maps{GoogleMaps: p.Maps.GoogleMaps, OpenStreetMaps: p.Maps.OpenStreetMaps},
	}

	for _, b := range p.Borders {
		if b = strings.ToUpper(strings.TrimSpace(b)); b != "" {
			c.Borders = append(c.Borders, b)
		}
	}
	for _, lang := range sortedKeys(p.Name.NativeName) {
		n := p.Name.NativeName[lang]
		c.Name.Native = append(c.Name.Native, NativeName{Lang: lang, Common: n.Common, Official: n.Official})
	}
	for _, code := range sortedKeys(p.Currencies) {
		cur := p.Currencies[code]
		c.Currencies = append(c.Currencies, Currency{Code: code, Name: cur.Name, Symbol: cur.Symbol})
	}
	for _, code := range sortedKeys(p.Languages) {
		c.Languages = append(c.Languages, Language{Code: code, Name: p.Languages[code]})
	}
	return c, true
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cleanStrings(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
