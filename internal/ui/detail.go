package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/atlas/internal/detail"
	"github.com/five82/atlas/internal/restcountries"
)

// openDetail switches to the detail screen and starts resolving code.
func (m Model) openDetail(code string) (tea.Model, tea.Cmd) {
	if m.view != ViewDetail {
		m.returnView = m.view
	}
	m.view = ViewDetail
	m.detailCode = strings.ToUpper(code)
	m.detail = nil
	m.detailErr = ""
	m.detailLoading = true
	m.borderIdx = 0
	m.refreshDetailViewport()

	if m.resolver == nil {
		m.detailLoading = false
		m.detailErr = detail.LoadFailedMessage
		return m, nil
	}
	return m, resolveCmd(m.ctx, m.resolver, m.detailCode, m.loaded(), m.requestTimeout)
}

func resolveCmd(ctx context.Context, r *detail.Resolver, code string, loaded []restcountries.Country, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		d, err := r.Resolve(ctx, code, loaded)
		return detailMsg{code: code, detail: d, err: err}
	}
}

// applyDetail installs a resolved detail unless the user has moved on.
func (m *Model) applyDetail(msg detailMsg) {
	if msg.code != m.detailCode {
		return
	}
	m.detailLoading = false
	if msg.err != nil {
		m.logger.Warn("country detail failed", zap.String("code", msg.code), zap.Error(msg.err))
		m.detail = nil
		m.detailErr = detail.LoadFailedMessage
	} else {
		d := msg.detail
		m.detail = &d
		m.detailErr = ""
	}
	m.refreshDetailViewport()
}

// handleDetailKey processes keys on the detail screen.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		if n := len(m.detailHistory); n > 0 {
			prev := m.detailHistory[n-1]
			m.detailHistory = m.detailHistory[:n-1]
			return m.openDetail(prev)
		}
		m.view = m.returnView
		return m, nil

	case key.Matches(msg, m.keys.Favorite):
		if m.detail != nil {
			return m.toggleFavorite(m.detail.Country)
		}
		return m, nil

	case key.Matches(msg, m.keys.NextLink):
		m.stepBorder(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevLink):
		m.stepBorder(-1)
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.detail == nil || len(m.detail.Borders) == 0 {
			return m, nil
		}
		next := m.detail.Borders[m.borderIdx].Code
		m.detailHistory = append(m.detailHistory, m.detailCode)
		return m.openDetail(next)

	case key.Matches(msg, m.keys.Down):
		m.detailViewport.LineDown(1)
	case key.Matches(msg, m.keys.Up):
		m.detailViewport.LineUp(1)
	case key.Matches(msg, m.keys.PageDown):
		m.detailViewport.HalfViewDown()
	case key.Matches(msg, m.keys.PageUp):
		m.detailViewport.HalfViewUp()
	case key.Matches(msg, m.keys.Top):
		m.detailViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.detailViewport.GotoBottom()
	}
	return m, nil
}

func (m *Model) stepBorder(delta int) {
	if m.detail == nil || len(m.detail.Borders) == 0 {
		return
	}
	n := len(m.detail.Borders)
	m.borderIdx = ((m.borderIdx+delta)%n + n) % n
}

func (m Model) detailWidth() int {
	return maxInt(m.width-4, 20)
}

// detailHeight leaves room for header, command bar, title, border chips,
// the panel border and the notice line.
func (m Model) detailHeight() int {
	return maxInt(m.height-8, 3)
}

// refreshDetailViewport re-renders the detail document at the current size.
func (m *Model) refreshDetailViewport() {
	if !m.ready {
		return
	}
	m.detailViewport.Width = m.detailWidth()
	m.detailViewport.Height = m.detailHeight()

	switch {
	case m.detailLoading:
		m.detailViewport.SetContent("Loading country details...")
	case m.detailErr != "":
		m.detailViewport.SetContent(m.detailErr)
	case m.detail != nil:
		favorite := m.session != nil && m.session.IsFavorite(m.detail.Country.Code)
		m.detailViewport.SetContent(m.renderMarkdown(detailMarkdown(*m.detail, favorite, m.mapsKey)))
	default:
		m.detailViewport.SetContent("")
	}
	m.detailViewport.GotoTop()
}

// renderMarkdown renders doc with glamour, falling back to the raw text.
func (m *Model) renderMarkdown(doc string) string {
	width := m.detailWidth() - 2
	if m.renderer == nil || m.rendererWidth != width {
		style := "dark"
		if m.theme.Name == "Slate" {
			style = "tokyo-night"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.logger.Debug("markdown renderer unavailable", zap.Error(err))
			return doc
		}
		m.renderer = r
		m.rendererWidth = width
	}
	out, err := m.renderer.Render(doc)
	if err != nil {
		return doc
	}
	return strings.TrimRight(out, "\n")
}

// detailMarkdown lays a resolved country out as a markdown document.
func detailMarkdown(d detail.Detail, favorite bool, mapsKey string) string {
	c := d.Country
	var b strings.Builder

	title := c.Name.Common
	if favorite {
		title += " ★"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if c.Name.Official != "" && c.Name.Official != c.Name.Common {
		fmt.Fprintf(&b, "*%s*\n\n", c.Name.Official)
	}

	b.WriteString("| | |\n|---|---|\n")
	rows := [][2]string{
		{"Native name", c.NativeName()},
		{"Population", formatPopulation(c.Population)},
		{"Region", orNA(c.Region)},
		{"Subregion", c.SubregionOrNA()},
		{"Capital", c.CapitalOrNA()},
		{"Top level domain", c.TLDSummary()},
		{"Currencies", c.CurrencySummary()},
		{"Languages", c.LanguageSummary()},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| **%s** | %s |\n", row[0], escapeCell(row[1]))
	}

	b.WriteString("\n## Border countries\n\n")
	if len(d.Borders) == 0 && len(d.Missing) == 0 {
		b.WriteString("No bordering countries.\n")
	}
	for _, border := range d.Borders {
		fmt.Fprintf(&b, "- %s (%s)\n", border.Name.Common, border.Code)
	}
	if len(d.Missing) > 0 {
		fmt.Fprintf(&b, "\n_Could not load: %s_\n", strings.Join(d.Missing, ", "))
	}

	b.WriteString("\n## Map\n\n")
	fmt.Fprintf(&b, "- Embed: %s\n", c.MapEmbedURL(mapsKey))
	if c.Maps.GoogleMaps != "" {
		fmt.Fprintf(&b, "- Google Maps: %s\n", c.Maps.GoogleMaps)
	}
	if c.Maps.OpenStreetMaps != "" {
		fmt.Fprintf(&b, "- OpenStreetMap: %s\n", c.Maps.OpenStreetMaps)
	}

	if c.Flags.PNG != "" || c.Flags.SVG != "" {
		b.WriteString("\n## Flag\n\n")
		if c.Flags.Alt != "" {
			fmt.Fprintf(&b, "%s\n\n", c.Flags.Alt)
		}
		flag := c.Flags.PNG
		if flag == "" {
			flag = c.Flags.SVG
		}
		fmt.Fprintf(&b, "%s\n", flag)
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// renderDetail renders the detail screen.
func (m Model) renderDetail() string {
	styles := m.theme.Styles()
	var b strings.Builder

	title := m.detailCode
	if m.detail != nil {
		title = m.detail.Country.Name.Common
	}
	crumbs := make([]string, 0, len(m.detailHistory)+1)
	crumbs = append(crumbs, m.detailHistory...)
	crumbs = append(crumbs, m.detailCode)
	b.WriteString(" " + styles.AccentText.Bold(true).Render(title) + "  " +
		styles.FaintText.Render(strings.Join(crumbs, " › ")))
	b.WriteString("\n")

	b.WriteString(styles.FocusPanel.Width(m.detailWidth() + 2).Render(m.detailViewport.View()))
	b.WriteString("\n")
	b.WriteString(m.renderBorderChips())
	return b.String()
}

// renderBorderChips lists the border countries with the link cursor.
func (m Model) renderBorderChips() string {
	styles := m.theme.Styles()
	if m.detail == nil || len(m.detail.Borders) == 0 {
		return " " + styles.FaintText.Render("No border countries to visit")
	}
	chip := lipgloss.NewStyle().Padding(0, 1)
	parts := []string{styles.MutedText.Render("Borders:")}
	for i, border := range m.detail.Borders {
		if i == m.borderIdx {
			parts = append(parts, styles.Selected.Padding(0, 1).Render(border.Name.Common))
			continue
		}
		parts = append(parts, chip.Foreground(lipgloss.Color(m.theme.Text)).Render(border.Name.Common))
	}
	return " " + truncateRendered(strings.Join(parts, " "), m.width-2)
}

// truncateRendered cuts styled text to width columns.
func truncateRendered(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
