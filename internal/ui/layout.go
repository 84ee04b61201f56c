package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the capital and
	// subregion columns are hidden.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width that shows the subregion column.
	LayoutWideWidth = 130
)

// Rows taken by chrome around the list: header, command bar, inputs, status
// line, column titles and the notice footer.
const listChromeRows = 6

// Timing constants.
const (
	// DefaultUIInterval is how often the catalog snapshot is polled.
	DefaultUIInterval = time.Second

	// DefaultRequestTimeout bounds one lookup started from the UI.
	DefaultRequestTimeout = 10 * time.Second
)
