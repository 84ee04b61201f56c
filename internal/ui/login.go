package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/atlas/internal/session"
)

func newLoginInputs() [2]textinput.Model {
	var inputs [2]textinput.Model
	labels := []string{"you@example.com", "Display name (optional)"}
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = labels[i]
		ti.CharLimit = 120
		ti.Width = 32
		inputs[i] = ti
	}
	return inputs
}

// openLogin shows the login form, remembering where to return.
func (m Model) openLogin() (tea.Model, tea.Cmd) {
	if m.view != ViewLogin {
		m.returnView = m.view
	}
	m.view = ViewLogin
	m.loginErr = ""
	m.loginInputs = newLoginInputs()
	m.loginFocusIdx = 0
	cmd := m.loginInputs[0].Focus()
	return m, cmd
}

// requireLogin reports a permission failure and opens the login form.
func (m Model) requireLogin() (tea.Model, tea.Cmd) {
	next, cmd := m.openLogin()
	lm := next.(Model)
	lm.setNotice("Please log in to manage favorites.", true)
	return lm, cmd
}

func (m Model) toggleAccount() (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	if !m.session.LoggedIn() {
		return m.openLogin()
	}
	if err := m.session.Logout(); err != nil {
		return m.fail(err)
	}
	m.favRow = 0
	m.setNotice("Logged out.", false)
	return m, nil
}

// handleLoginKey processes keys while the login form is open.
func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case msg.Type == tea.KeyEsc:
		m.view = m.returnView
		for i := range m.loginInputs {
			m.loginInputs[i].Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		return m.submitLogin()

	case key.Matches(msg, m.keys.NextField):
		m.loginInputs[m.loginFocusIdx].Blur()
		m.loginFocusIdx = (m.loginFocusIdx + 1) % len(m.loginInputs)
		cmd := m.loginInputs[m.loginFocusIdx].Focus()
		return m, cmd
	}

	var cmd tea.Cmd
	i := m.loginFocusIdx
	m.loginInputs[i], cmd = m.loginInputs[i].Update(msg)
	return m, cmd
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.loginErr = "Sessions are unavailable."
		return m, nil
	}
	email := strings.TrimSpace(m.loginInputs[0].Value())
	name := strings.TrimSpace(m.loginInputs[1].Value())
	if email == "" {
		m.loginErr = "Email is required."
		return m, nil
	}
	if _, err := session.NormalizeEmail(email); err != nil {
		m.loginErr = "Please enter a valid email address."
		return m, nil
	}

	user, err := m.session.Login(email, name)
	if err != nil {
		m.logger.Info("login rejected", zap.Error(err))
		m.loginErr = err.Error()
		return m, nil
	}

	for i := range m.loginInputs {
		m.loginInputs[i].Blur()
	}
	m.view = m.returnView
	if m.view == ViewLogin {
		m.view = ViewCountries
	}
	m.setNotice(fmt.Sprintf("Welcome, %s!", user.Name), false)
	m.favRow = 0
	if m.view == ViewDetail {
		m.refreshDetailViewport()
	}
	return m, nil
}

// renderLogin renders the login modal.
func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	var b strings.Builder

	b.WriteString(styles.Text.Bold(true).Render("Log in"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 34)))
	b.WriteString("\n\n")

	labels := []string{"Email", "Name"}
	for i, input := range m.loginInputs {
		label := styles.MutedText.Render(labels[i])
		if i == m.loginFocusIdx {
			label = styles.AccentText.Bold(true).Render(labels[i])
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	if m.loginErr != "" {
		b.WriteString(styles.DangerText.Render(m.loginErr))
		b.WriteString("\n\n")
	} else if m.notice != "" {
		b.WriteString(styles.WarningText.Render(m.notice))
		b.WriteString("\n\n")
	}
	b.WriteString(styles.FaintText.Render("enter log in · tab next field · esc cancel"))

	return m.renderModal(b.String(), 44)
}
