package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/atlas/internal/listing"
	"github.com/five82/atlas/internal/restcountries"
)

// handleCountriesKey processes keys while the country table has focus.
func (m Model) handleCountriesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		m.focus = focusSearch
		m.filterInput.Blur()
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.FilterValue):
		m.focus = focusFilter
		m.searchInput.Blur()
		cmd := m.filterInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.CycleFilter):
		return m.cycleFilterType()

	case key.Matches(msg, m.keys.ClearInputs):
		return m.clearInputs()

	case key.Matches(msg, m.keys.Open):
		if c, ok := m.selectedCountry(); ok {
			m.detailHistory = nil
			return m.openDetail(c.Code)
		}
		return m, nil

	case key.Matches(msg, m.keys.Favorite):
		if c, ok := m.selectedCountry(); ok {
			return m.toggleFavorite(c)
		}
		return m, nil
	}

	m.selectedRow = m.moveSelection(msg, m.selectedRow, len(m.listing.Results()), m.listHeight())
	return m, nil
}

// handleInputKey processes keys while the search or filter input has focus.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc, tea.KeyEnter:
		var cmd tea.Cmd
		if m.focus == focusFilter && msg.Type == tea.KeyEnter {
			cmd = m.applyFilter()
		}
		m.searchInput.Blur()
		m.filterInput.Blur()
		m.focus = focusTable
		return m, cmd

	case tea.KeyTab:
		if m.focus == focusFilter {
			return m.cycleFilterType()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusSearch {
		before := m.searchInput.Value()
		m.searchInput, cmd = m.searchInput.Update(msg)
		if after := m.searchInput.Value(); after != before {
			step := m.runStep(m.listing.SetSearchTerm(after))
			return m, tea.Batch(cmd, step)
		}
		return m, cmd
	}
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// applyFilter installs the typed filter value unless it is already active
// and its last lookup succeeded.
func (m *Model) applyFilter() tea.Cmd {
	f := listing.Filter{Type: m.filterType, Value: strings.TrimSpace(m.filterInput.Value())}
	current := m.listing.Filter()
	if f.Value == "" && !current.Active() {
		return nil
	}
	if f.Value != "" && current.Type == f.Type && strings.EqualFold(current.Value, f.Value) &&
		m.listing.Message() == "" {
		return nil
	}
	m.selectedRow = 0
	return m.runStep(m.listing.SetFilter(f))
}

// cycleFilterType moves to the next filter type, re-running a typed filter
// under the new type.
func (m Model) cycleFilterType() (tea.Model, tea.Cmd) {
	m.filterType = m.filterType.Next()
	m.savePrefs()
	if strings.TrimSpace(m.filterInput.Value()) == "" {
		return m, nil
	}
	cmd := m.applyFilter()
	return m, cmd
}

func (m Model) clearInputs() (tea.Model, tea.Cmd) {
	m.searchInput.SetValue("")
	m.filterInput.SetValue("")
	m.listing.SetFilter(listing.Filter{})
	cmd := m.runStep(m.listing.SetSearchTerm(""))
	return m, cmd
}

func (m Model) selectedCountry() (restcountries.Country, bool) {
	results := m.listing.Results()
	if m.selectedRow < 0 || m.selectedRow >= len(results) {
		return restcountries.Country{}, false
	}
	return results[m.selectedRow], true
}

// moveSelection applies navigation keys to a cursor over count rows.
func (m Model) moveSelection(msg tea.KeyMsg, row, count, page int) int {
	if count == 0 {
		return 0
	}
	switch {
	case key.Matches(msg, m.keys.Down):
		row++
	case key.Matches(msg, m.keys.Up):
		row--
	case key.Matches(msg, m.keys.Top):
		row = 0
	case key.Matches(msg, m.keys.Bottom):
		row = count - 1
	case key.Matches(msg, m.keys.PageDown):
		row += maxInt(page, 1)
	case key.Matches(msg, m.keys.PageUp):
		row -= maxInt(page, 1)
	}
	return clamp(row, 0, count-1)
}

func (m Model) listHeight() int {
	return maxInt(m.height-listChromeRows, 1)
}

// renderCountries renders the inputs, status line and the country table.
func (m Model) renderCountries() string {
	styles := m.theme.Styles()
	var b strings.Builder

	b.WriteString(m.renderInputs())
	b.WriteString("\n")
	b.WriteString(m.renderListStatus())
	b.WriteString("\n")

	results := m.listing.Results()
	cols := m.columns()
	b.WriteString(styles.MutedText.Bold(true).Render(cols.header()))
	b.WriteString("\n")

	height := m.listHeight()
	start := 0
	if m.selectedRow >= height {
		start = m.selectedRow - height + 1
	}
	end := start + height
	if end > len(results) {
		end = len(results)
	}

	rows := make([]string, 0, height)
	for i := start; i < end; i++ {
		rows = append(rows, m.renderCountryRow(results[i], cols, i == m.selectedRow))
	}
	for len(rows) < height {
		rows = append(rows, "")
	}
	b.WriteString(strings.Join(rows, "\n"))
	return b.String()
}

func (m Model) renderInputs() string {
	styles := m.theme.Styles()

	label := func(text string, focused bool) string {
		if focused {
			return styles.AccentText.Bold(true).Render(text)
		}
		return styles.MutedText.Render(text)
	}
	field := func(view string, focused bool) string {
		st := lipgloss.NewStyle().Padding(0, 1)
		if focused {
			st = st.Background(lipgloss.Color(m.theme.FocusBg))
		} else {
			st = st.Background(lipgloss.Color(m.theme.SurfaceAlt))
		}
		return st.Render(view)
	}

	search := label("Search", m.focus == focusSearch) + " " + field(m.searchInput.View(), m.focus == focusSearch)
	filterLabel := fmt.Sprintf("Filter by %s", m.filterType)
	filter := label(filterLabel, m.focus == focusFilter) + " " + field(m.filterInput.View(), m.focus == focusFilter)
	if active := m.listing.Filter(); active.Active() {
		filter += " " + styles.InfoText.Render(fmt.Sprintf("[%s: %s]", active.Type, active.Value))
	}
	return " " + search + "   " + filter
}

func (m Model) renderListStatus() string {
	styles := m.theme.Styles()
	results := m.listing.Results()

	switch {
	case m.listing.Loading():
		return " " + styles.WarningText.Render("Loading...")
	case m.listing.Message() != "":
		return " " + styles.DangerText.Render(m.listing.Message())
	case !m.snapshot.Loaded && m.snapshot.LastError != nil && len(results) == 0:
		return " " + styles.DangerText.Render("Could not load countries. Retrying...")
	case !m.snapshot.Loaded && len(results) == 0:
		return " " + styles.WarningText.Render("Loading countries...")
	}

	count := fmt.Sprintf("%d countries", len(results))
	if len(results) == 1 {
		count = "1 country"
	}
	return " " + styles.MutedText.Render(count)
}

// tableColumns holds the widths of the visible country columns; zero hides one.
type tableColumns struct {
	name, capital, region, subregion, population int
}

func (m Model) columns() tableColumns {
	cols := tableColumns{region: 10, population: 15}
	if m.width >= LayoutCompactWidth {
		cols.capital = 18
	}
	if m.width >= LayoutWideWidth {
		cols.subregion = 24
	}
	fixed := 4 + cols.region + cols.population
	if cols.capital > 0 {
		fixed += cols.capital + 1
	}
	if cols.subregion > 0 {
		fixed += cols.subregion + 1
	}
	cols.name = maxInt(m.width-fixed-4, 12)
	return cols
}

func (c tableColumns) header() string {
	parts := []string{"  ", cell("Name", c.name)}
	if c.capital > 0 {
		parts = append(parts, cell("Capital", c.capital))
	}
	parts = append(parts, cell("Region", c.region))
	if c.subregion > 0 {
		parts = append(parts, cell("Subregion", c.subregion))
	}
	parts = append(parts, fmt.Sprintf("%*s", c.population, "Population"))
	return " " + strings.Join(parts, " ")
}

func (m Model) renderCountryRow(c restcountries.Country, cols tableColumns, selected bool) string {
	marker := "  "
	if m.session != nil && m.session.IsFavorite(c.Code) {
		marker = "★ "
	}

	parts := []string{marker, cell(c.Name.Common, cols.name)}
	if cols.capital > 0 {
		parts = append(parts, cell(c.CapitalOrNA(), cols.capital))
	}
	region := cell(c.Region, cols.region)
	if !selected {
		region = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.RegionColor(c.Region))).Render(region)
	}
	parts = append(parts, region)
	if cols.subregion > 0 {
		parts = append(parts, cell(c.SubregionOrNA(), cols.subregion))
	}
	parts = append(parts, fmt.Sprintf("%*s", cols.population, formatPopulation(c.Population)))

	line := " " + strings.Join(parts, " ")
	if selected {
		return m.theme.Styles().Selected.Width(maxInt(m.width, 1)).Render(line)
	}
	return m.theme.Styles().Text.Render(line)
}
