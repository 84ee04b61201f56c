package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// renderHeader renders the status bar: catalog state, account and theme.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("atlas", styles.Logo)}
	parts = append(parts, m.catalogStatus(styles, bg))

	if m.session != nil {
		if user, ok := m.session.User(); ok {
			parts = append(parts,
				bg.Render("User:", styles.MutedText)+bg.Space()+bg.Render(user.Name, styles.Text),
				bg.Render("Favorites:", styles.MutedText)+bg.Space()+
					bg.Render(fmt.Sprintf("%d", len(m.session.Favorites())), styles.AccentText),
			)
		} else {
			parts = append(parts, bg.Render("Not logged in", styles.FaintText))
		}
	}

	if m.width >= LayoutCompactWidth {
		parts = append(parts, bg.Render("Theme:", styles.MutedText)+bg.Space()+bg.Render(m.theme.Name, styles.Text))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) catalogStatus(styles Styles, bg BgStyle) string {
	snap := m.snapshot
	switch {
	case snap.IsOffline():
		retry := "retrying"
		if !snap.LastUpdated.IsZero() {
			retry = "last try " + humanize.Time(snap.LastUpdated)
		}
		return bg.Render("● OFFLINE", styles.DangerText) + bg.Space() + bg.Render(retry, styles.MutedText)
	case !snap.Loaded && snap.LastError != nil:
		return bg.Render("● API error", styles.WarningText) + bg.Space() + bg.Render("retrying", styles.MutedText)
	case !snap.Loaded:
		return bg.Render("Loading countries...", styles.WarningText.Bold(true))
	default:
		return bg.Render("● "+humanize.Comma(int64(len(snap.Countries)))+" countries", styles.SuccessText) +
			bg.Space() + bg.Render("updated "+humanize.Time(snap.LastUpdated), styles.FaintText)
	}
}

// renderCommandBar renders the key hints for the active screen.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()

	var bindings []key.Binding
	switch m.view {
	case ViewDetail:
		bindings = []key.Binding{m.keys.Escape, m.keys.NextLink, m.keys.Open, m.keys.Favorite, m.keys.Favorites, m.keys.Help, m.keys.Quit}
	case ViewFavorites:
		bindings = []key.Binding{m.keys.Escape, m.keys.Open, m.keys.Remove, m.keys.Account, m.keys.Help, m.keys.Quit}
	default:
		if m.focus != focusTable {
			return " " + styles.FaintText.Render("enter apply · esc done · tab cycle filter type")
		}
		bindings = m.keys.ShortHelp()
	}

	parts := make([]string, 0, len(bindings))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+" "+styles.MutedText.Render(strings.ToLower(h.Desc)))
	}
	return " " + truncateRendered(strings.Join(parts, styles.FaintText.Render(" · ")), m.width-2)
}

// renderNotice renders the transient notice line.
func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	styles := m.theme.Styles()
	if m.noticeErr {
		return " " + styles.DangerText.Render(m.notice)
	}
	return " " + styles.SuccessText.Render(m.notice)
}
