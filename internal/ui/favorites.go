package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/atlas/internal/restcountries"
	"github.com/five82/atlas/internal/session"
)

func (m Model) favorites() []restcountries.Country {
	if m.session == nil {
		return nil
	}
	return m.session.Favorites()
}

// toggleFavorite adds or removes c for the signed-in user.
func (m Model) toggleFavorite(c restcountries.Country) (tea.Model, tea.Cmd) {
	if m.session == nil || !m.session.LoggedIn() {
		return m.requireLogin()
	}
	if m.session.IsFavorite(c.Code) {
		if _, _, err := m.session.RemoveFavorite(c.Code); err != nil {
			return m.fail(err)
		}
		m.setNotice(fmt.Sprintf("Removed %s from favorites.", c.Name.Common), false)
	} else {
		if err := m.session.AddFavorite(c); err != nil {
			return m.fail(err)
		}
		m.setNotice(fmt.Sprintf("Added %s to favorites.", c.Name.Common), false)
	}
	m.favRow = clamp(m.favRow, 0, len(m.favorites())-1)
	if m.view == ViewDetail {
		m.refreshDetailViewport()
	}
	return m, nil
}

// handleFavoritesKey processes keys on the favorites screen.
func (m Model) handleFavoritesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	favs := m.favorites()
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.view = ViewCountries
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.favRow < len(favs) {
			m.detailHistory = nil
			return m.openDetail(favs[m.favRow].Code)
		}
		return m, nil

	case key.Matches(msg, m.keys.Remove), key.Matches(msg, m.keys.Favorite):
		if m.favRow < len(favs) {
			return m.toggleFavorite(favs[m.favRow])
		}
		return m, nil
	}

	m.favRow = m.moveSelection(msg, m.favRow, len(favs), m.listHeight())
	return m, nil
}

// renderFavorites renders the favorites screen.
func (m Model) renderFavorites() string {
	styles := m.theme.Styles()
	height := m.listHeight() + 2
	var lines []string

	user, loggedIn := session.User{}, false
	if m.session != nil {
		user, loggedIn = m.session.User()
	}

	switch favs := m.favorites(); {
	case !loggedIn:
		lines = append(lines,
			" "+styles.WarningText.Render("Please log in to view your favorites."),
			" "+styles.MutedText.Render("Press L to log in."),
		)

	case len(favs) == 0:
		lines = append(lines,
			" "+styles.AccentText.Bold(true).Render("My Favorite Countries"),
			"",
			" "+styles.MutedText.Render("You haven't added any countries to your favorites yet."),
			" "+styles.MutedText.Render("Explore countries and press a to add them here."),
		)

	default:
		count := fmt.Sprintf("You have %d countries in your favorites.", len(favs))
		if len(favs) == 1 {
			count = "You have 1 country in your favorites."
		}
		lines = append(lines,
			" "+styles.AccentText.Bold(true).Render("My Favorite Countries")+"  "+styles.FaintText.Render(user.Email),
			" "+styles.MutedText.Render(count),
		)
		cols := m.columns()
		lines = append(lines, styles.MutedText.Bold(true).Render(cols.header()))

		page := maxInt(height-len(lines), 1)
		start := 0
		if m.favRow >= page {
			start = m.favRow - page + 1
		}
		for i := start; i < len(favs) && i < start+page; i++ {
			lines = append(lines, m.renderCountryRow(favs[i], cols, i == m.favRow))
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
