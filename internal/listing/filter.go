package listing

import (
	"fmt"
	"strings"
)

// FilterType names a category the list can be narrowed by.
type FilterType string

const (
	FilterNone      FilterType = ""
	FilterRegion    FilterType = "region"
	FilterSubregion FilterType = "subregion"
	FilterLanguage  FilterType = "language"
	FilterCurrency  FilterType = "currency"
)

var filterCycle = []FilterType{FilterRegion, FilterSubregion, FilterLanguage, FilterCurrency}

// FilterTypes lists the selectable filter types in display order.
func FilterTypes() []FilterType {
	out := make([]FilterType, len(filterCycle))
	copy(out, filterCycle)
	return out
}

// ParseFilterType accepts a filter type name; blank and "none" mean no filter.
func ParseFilterType(s string) (FilterType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FilterNone, nil
	case "region":
		return FilterRegion, nil
	case "subregion":
		return FilterSubregion, nil
	case "language", "lang":
		return FilterLanguage, nil
	case "currency":
		return FilterCurrency, nil
	default:
		return FilterNone, fmt.Errorf("unknown filter type %q", s)
	}
}

// Next returns the following type in the selection cycle.
func (t FilterType) Next() FilterType {
	for i, ft := range filterCycle {
		if ft == t {
			return filterCycle[(i+1)%len(filterCycle)]
		}
	}
	return filterCycle[0]
}

func (t FilterType) String() string {
	if t == FilterNone {
		return "none"
	}
	return string(t)
}

// Filter is the single active category constraint.
type Filter struct {
	Type  FilterType
	Value string
}

// Active reports whether the filter constrains results.
func (f Filter) Active() bool {
	return f.Type != FilterNone && strings.TrimSpace(f.Value) != ""
}
