package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/five82/atlas/internal/detail"
	"github.com/five82/atlas/internal/listing"
	"github.com/five82/atlas/internal/prefs"
	"github.com/five82/atlas/internal/restcountries"
	"github.com/five82/atlas/internal/session"
	"github.com/five82/atlas/internal/state"
)

// View represents the current active screen.
type View int

const (
	ViewCountries View = iota
	ViewDetail
	ViewFavorites
	ViewLogin
)

// focus says which widget of the countries screen receives keys.
type focus int

const (
	focusTable focus = iota
	focusSearch
	focusFilter
)

// Options configures the UI.
type Options struct {
	Context  context.Context
	Source   restcountries.Source
	Catalog  *state.Store
	Session  *session.Store
	Resolver *detail.Resolver
	Listing  *listing.Reconciler
	Logger   *zap.Logger

	ThemeName      string
	FilterType     string
	PrefsPath      string
	MapsKey        string
	RequestTimeout time.Duration
	PollTick       time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx            context.Context
	source         restcountries.Source
	catalog        *state.Store
	session        *session.Store
	resolver       *detail.Resolver
	listing        *listing.Reconciler
	logger         *zap.Logger
	prefsPath      string
	mapsKey        string
	requestTimeout time.Duration
	pollTick       time.Duration
	keys           keyMap

	// UI state
	theme      Theme
	view       View
	returnView View // where login and detail go back to
	width      int
	height     int
	ready      bool
	showHelp   bool
	notice     string
	noticeErr  bool

	// Catalog
	snapshot  state.Snapshot
	catalogAt time.Time

	// Countries screen
	focus       focus
	searchInput textinput.Model
	filterInput textinput.Model
	filterType  listing.FilterType
	selectedRow int
	pendingSeq  uint64

	// Favorites screen
	favRow int

	// Detail screen
	detailCode     string
	detail         *detail.Detail
	detailErr      string
	detailLoading  bool
	detailHistory  []string
	borderIdx      int
	detailViewport viewport.Model
	renderer       *glamour.TermRenderer
	rendererWidth  int

	// Login form
	loginInputs   [2]textinput.Model // email, name
	loginFocusIdx int
	loginErr      string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	reconciler := opts.Listing
	if reconciler == nil {
		reconciler = listing.New()
	}
	resolver := opts.Resolver
	if resolver == nil && opts.Source != nil {
		resolver = detail.NewResolver(opts.Source, logger.Named("detail"))
	}

	filterType, err := listing.ParseFilterType(opts.FilterType)
	if err != nil || filterType == listing.FilterNone {
		filterType = listing.FilterRegion
	}

	search := textinput.New()
	search.Placeholder = "Search for a country..."
	search.Prompt = ""
	search.CharLimit = 80
	search.Width = 30

	filter := textinput.New()
	filter.Placeholder = "e.g. Europe"
	filter.Prompt = ""
	filter.CharLimit = 60
	filter.Width = 20

	return Model{
		ctx:            ctx,
		source:         opts.Source,
		catalog:        opts.Catalog,
		session:        opts.Session,
		resolver:       resolver,
		listing:        reconciler,
		logger:         logger,
		prefsPath:      prefsPath,
		mapsKey:        opts.MapsKey,
		requestTimeout: timeout,
		pollTick:       pollTick,
		keys:           DefaultKeyMap(),
		theme:          GetTheme(opts.ThemeName),
		view:           ViewCountries,
		searchInput:    search,
		filterInput:    filter,
		filterType:     filterType,
		loginInputs:    newLoginInputs(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.catalog != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.catalog))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.detailViewport = viewport.New(m.detailWidth(), m.detailHeight())
		}
		m.ready = true
		m.refreshDetailViewport()
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.pollTick)}
		if m.catalog != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.catalog))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case debounceMsg:
		cmd := m.runStep(m.listing.Fire(msg.seq))
		return m, cmd

	case listingMsg:
		if m.listing.Apply(listing.Result(msg)) {
			m.selectedRow = clamp(m.selectedRow, 0, len(m.listing.Results())-1)
		}
		return m, nil

	case detailMsg:
		m.applyDetail(msg)
		return m, nil

	case reloadMsg:
		if msg.err != nil {
			m.setNotice("Could not reload countries: "+msg.err.Error(), true)
		} else {
			m.setNotice("Countries reloaded.", false)
		}
		if m.catalog != nil {
			return m, fetchSnapshotCmd(m.catalog)
		}
		return m, nil
	}

	// Cursor blink and similar widget messages.
	return m.updateInputs(msg)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.view == ViewLogin {
		return m.renderLogin()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.view == ViewLogin {
		return m.handleLoginKey(msg)
	}
	if m.view == ViewCountries && m.focus != focusTable {
		return m.handleInputKey(msg)
	}

	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.rendererWidth = 0
		m.refreshDetailViewport()
		return m, nil
	case key.Matches(msg, m.keys.Account):
		return m.toggleAccount()
	case key.Matches(msg, m.keys.Favorites):
		m.view = ViewFavorites
		m.favRow = clamp(m.favRow, 0, len(m.favorites())-1)
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m, m.reloadCmd()
	}

	switch m.view {
	case ViewCountries:
		return m.handleCountriesKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewFavorites:
		return m.handleFavoritesKey(msg)
	}
	return m, nil
}

// updateInputs forwards non-key messages to whichever input has focus.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.view == ViewLogin:
		i := m.loginFocusIdx
		m.loginInputs[i], cmd = m.loginInputs[i].Update(msg)
	case m.focus == focusSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
	case m.focus == focusFilter:
		m.filterInput, cmd = m.filterInput.Update(msg)
	}
	return m, cmd
}

// runStep turns a reconciler step into a command.
func (m *Model) runStep(step listing.Step) tea.Cmd {
	switch step.Kind {
	case listing.StepWait:
		m.pendingSeq = step.Seq
		return debounceCmd(step.Seq, step.Delay)
	case listing.StepFetch:
		return executeCmd(m.ctx, m.source, step.Query, m.requestTimeout)
	case listing.StepShow:
		m.selectedRow = 0
	}
	return nil
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	if !snap.Loaded || snap.LastUpdated.Equal(m.catalogAt) {
		return
	}
	m.catalogAt = snap.LastUpdated
	m.listing.SetCatalog(snap.Countries)
	m.selectedRow = clamp(m.selectedRow, 0, len(m.listing.Results())-1)
}

// loaded returns the full catalog for detail resolution. Listing results
// carry list fields only, so without a catalog everything is looked up.
func (m Model) loaded() []restcountries.Country {
	if m.catalog == nil {
		return nil
	}
	return m.catalog.Countries()
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// fail reports err, sending permission failures to the login form.
func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	if errors.Is(err, session.ErrLoginRequired) {
		return m.requireLogin()
	}
	m.logger.Warn("action failed", zap.Error(err))
	m.setNotice(err.Error(), true)
	return m, nil
}

func (m *Model) savePrefs() {
	p := prefs.Prefs{Theme: m.theme.Name, FilterType: m.filterType.String()}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.Warn("save preferences failed", zap.String("path", m.prefsPath), zap.Error(err))
	}
}

// renderMain renders header, command bar, the active screen and the notice line.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderNotice())
	return b.String()
}

func (m Model) renderContent() string {
	switch m.view {
	case ViewDetail:
		return m.renderDetail()
	case ViewFavorites:
		return m.renderFavorites()
	default:
		return m.renderCountries()
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type debounceMsg struct{ seq uint64 }

type listingMsg listing.Result

type detailMsg struct {
	code   string
	detail detail.Detail
	err    error
}

type reloadMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func debounceCmd(seq uint64, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return debounceMsg{seq: seq}
	})
}

func executeCmd(ctx context.Context, source restcountries.Source, q listing.Query, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return listingMsg(listing.Execute(ctx, source, q))
	}
}

func (m Model) reloadCmd() tea.Cmd {
	if m.source == nil || m.catalog == nil {
		return nil
	}
	ctx, source, store, timeout := m.ctx, m.source, m.catalog, m.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		countries, err := source.FetchAll(ctx)
		store.Update(countries, err)
		return reloadMsg{err: err}
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
