package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/playsync/internal/bus"
	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/playback"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/settings"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LibraryView ViewState = iota
	PickPlaylistView
	SettingsView
)

// pane is the focused region of [LibraryView].
type pane int

const (
	likedPane pane = iota
	playlistsPane
	tracksPane
)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	session   *session.Session
	view      ViewState
	focus     pane
	width     int
	height    int
	liked     list.Model
	playlists list.Model
	tracks    list.Model
	picker    list.Model
	open      models.PlaylistID
	sections  []settings.SectionResult
	status    string
	err       error
	help      help.Model
	keys      keyMap
	unsubs    []func()
}

// NewModel creates a new TUI model over a started session.
func NewModel(ctx context.Context, sess *session.Session) *Model {
	return &Model{
		ctx:       ctx,
		session:   sess,
		view:      LibraryView,
		liked:     newList(models.LikedSongsPlaylist),
		playlists: newList("Playlists"),
		tracks:    newList(""),
		picker:    newList("Add to playlist"),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, sess *session.Session) error {
	m := NewModel(ctx, sess)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.Subscribe(p.Send)
	defer m.Close()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// Subscribe registers both library regions on the session bus. Every notification is forwarded to send,
// which is [tea.Program.Send] outside of tests. Publishers always run off the event loop (inside a [tea.Cmd]
// or a cache refresh goroutine), so a blocking send is safe.
func (m *Model) Subscribe(send func(tea.Msg)) {
	b := m.session.Bus()
	m.unsubs = append(m.unsubs,
		b.Subscribe(bus.TopicLikedTracksChanged, func() { send(likedChangedMsg()) }),
		b.Subscribe(bus.TopicPlaylistsChanged, func() { send(playlistsChangedMsg()) }),
	)
}

// Close removes the subscriptions made by [Model.Subscribe].
func (m *Model) Close() {
	for _, unsubscribe := range m.unsubs {
		unsubscribe()
	}
	m.unsubs = nil
}

// Init fills both regions from whatever the caches already hold.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.syncLiked(), m.syncPlaylists())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LibraryView:
			return m.handleLibraryKeys(msg)
		case PickPlaylistView:
			return m.handlePickerKeys(msg)
		case SettingsView:
			return m.handleSettingsKeys(msg)
		}

	case Msg:
		return m, m.handleMsg(msg)
	}

	return m.updateFocused(msg)
}

func (m *Model) handleMsg(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgLikedChanged:
		return m.syncLiked()

	case MsgPlaylistsChanged:
		return m.syncPlaylists()

	case MsgRefreshed:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
			return nil
		}
		m.err = nil
		m.status = "library refreshed"

	case MsgToggled:
		data := msg.data.(struct {
			result playback.ToggleResult
			err    error
		})
		m.toggled(data.result, data.err)

	case MsgTrackAdded:
		data := msg.data.(struct {
			playlist string
			err      error
		})
		if data.err != nil {
			m.err = fmt.Errorf("could not add to %s: %w", data.playlist, data.err)
			return nil
		}
		m.err = nil
		m.status = fmt.Sprintf("added to %s", data.playlist)

	case MsgSettingsFetched:
		m.sections = msg.data.([]settings.SectionResult)
		m.status = ""
		m.view = SettingsView
	}
	return nil
}

func (m *Model) toggled(result playback.ToggleResult, err error) {
	m.err = nil
	switch result.Status {
	case playback.StatusApplied:
		if result.Liked {
			m.status = fmt.Sprintf("♥ liked %s", result.Track)
		} else {
			m.status = fmt.Sprintf("unliked %s", result.Track)
		}
	case playback.StatusRolledBack:
		m.err = fmt.Errorf("could not update %s: %w", result.Track, err)
	default:
		m.status = result.Status.String()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	w, h := width/2-4, height-8
	m.liked.SetSize(w, h)
	m.playlists.SetSize(w, h)
	m.tracks.SetSize(w, h)
	m.picker.SetSize(width-4, h)
}

// filtering reports whether the focused list owns the keyboard.
func (m *Model) filtering() bool {
	return m.focused().FilterState() == list.Filtering
}

func (m *Model) focused() *list.Model {
	switch m.focus {
	case playlistsPane:
		return &m.playlists
	case tracksPane:
		return &m.tracks
	default:
		return &m.liked
	}
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering() {
		return m.updateFocused(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		if m.focus == likedPane {
			m.focus = playlistsPane
			if m.open != "" {
				m.focus = tracksPane
			}
		} else {
			m.focus = likedPane
		}
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.focus == tracksPane {
			m.open = ""
			m.focus = playlistsPane
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		return m, m.selectFocused()
	case key.Matches(msg, m.keys.like):
		return m, m.toggleLike()
	case key.Matches(msg, m.keys.add):
		return m, m.openPicker()
	case key.Matches(msg, m.keys.settings):
		return m, m.fetchSettings()
	case key.Matches(msg, m.keys.refresh):
		m.status = "refreshing..."
		return m, m.refresh()
	}

	return m.updateFocused(msg)
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = LibraryView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		item, ok := m.picker.SelectedItem().(playlistItem)
		if !ok {
			return m, nil
		}
		track, ok := m.session.NowPlaying().Current()
		m.view = LibraryView
		if !ok {
			m.status = "select a track first"
			return m, nil
		}
		m.status = fmt.Sprintf("adding to %s...", item.playlist.Name)
		return m, m.addTrack(track, item.playlist)
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m *Model) handleSettingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = LibraryView
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchSettings()
	}
	return m, nil
}

func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != LibraryView {
		return m, nil
	}
	l := m.focused()
	var cmd tea.Cmd
	*l, cmd = l.Update(msg)
	return m, cmd
}

// selectFocused makes the highlighted track the now-playing track, or opens the highlighted playlist.
func (m *Model) selectFocused() tea.Cmd {
	switch item := m.focused().SelectedItem().(type) {
	case trackItem:
		m.session.NowPlaying().Select(item.id)
		m.status = fmt.Sprintf("now playing %s", item.id)
		return m.syncLiked()
	case playlistItem:
		m.open = item.playlist.ID
		m.focus = tracksPane
		m.tracks.ResetSelected()
		return m.syncTracks()
	}
	return nil
}

func (m *Model) openPicker() tea.Cmd {
	if _, ok := m.session.NowPlaying().Current(); !ok {
		m.status = "select a track first"
		return nil
	}
	m.view = PickPlaylistView
	m.picker.ResetSelected()
	return m.picker.SetItems(playlistItems(m.session.Playlists().List()))
}

func (m *Model) syncLiked() tea.Cmd {
	liked := m.session.Liked().Snapshot()
	current, _ := m.session.NowPlaying().Current()

	m.liked.Title = fmt.Sprintf("%s (%d)", models.LikedSongsPlaylist, liked.Len())
	cmds := []tea.Cmd{m.liked.SetItems(trackItems(liked.IDs(), liked, current))}
	if m.open != "" {
		cmds = append(cmds, m.syncTracks())
	}
	return tea.Batch(cmds...)
}

func (m *Model) syncPlaylists() tea.Cmd {
	playlists := m.session.Playlists().List()

	m.playlists.Title = fmt.Sprintf("Playlists (%d)", len(playlists))
	cmds := []tea.Cmd{m.playlists.SetItems(playlistItems(playlists))}
	if m.open != "" {
		cmds = append(cmds, m.syncTracks())
	}
	return tea.Batch(cmds...)
}

// syncTracks rebuilds the open playlist's track pane, closing it when the playlist disappeared.
func (m *Model) syncTracks() tea.Cmd {
	pl, ok := m.session.Playlists().Get(m.open)
	if !ok {
		m.open = ""
		if m.focus == tracksPane {
			m.focus = playlistsPane
		}
		return nil
	}

	liked := m.session.Liked().Snapshot()
	current, _ := m.session.NowPlaying().Current()
	m.tracks.Title = pl.Name
	return m.tracks.SetItems(trackItems(pl.TrackIDs, liked, current))
}

func (m *Model) toggleLike() tea.Cmd {
	controller := m.session.Controller()
	return func() tea.Msg {
		result, err := controller.ToggleLike(m.ctx)
		return toggledMsg(result, err)
	}
}

func (m *Model) addTrack(track models.TrackID, playlist models.Playlist) tea.Cmd {
	controller := m.session.Controller()
	return func() tea.Msg {
		err := controller.AddTrackToPlaylist(m.ctx, track, playlist.ID)
		return trackAddedMsg(playlist.Name, err)
	}
}

func (m *Model) fetchSettings() tea.Cmd {
	user := m.session.Identity()
	if !user.Valid() {
		m.status = "sign in to view settings"
		return nil
	}
	m.status = "loading settings..."
	aggregator := m.session.Aggregator()
	return func() tea.Msg {
		return settingsFetchedMsg(aggregator.GetAllSections(m.ctx, user))
	}
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg(m.session.RefreshAll(m.ctx))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PickPlaylistView:
		return m.renderPicker()
	case SettingsView:
		return m.renderSettings()
	default:
		return m.renderLibrary()
	}
}

func (m *Model) renderHeader() string {
	user := m.session.Identity()
	who := "signed out"
	if user.Valid() {
		who = user.String()
		if name := m.session.Profile().DisplayName; name != "" {
			who = fmt.Sprintf("%s (%s)", name, user)
		}
	}

	header := styles.title.Render("playsync") + "  " + styles.help.Render(who)
	if track, ok := m.session.NowPlaying().Current(); ok {
		marker := "♡"
		if m.session.Liked().Contains(track) {
			marker = "♥"
		}
		header += "  " + styles.ok.Render(fmt.Sprintf("%s %s", marker, track))
	}
	return header
}

func (m *Model) renderStatus() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return styles.help.Render(m.status)
}

func (m *Model) renderLibrary() string {
	left, right := styles.pane, styles.pane
	if m.focus == likedPane {
		left = styles.focused
	} else {
		right = styles.focused
	}

	rightView := m.playlists.View()
	if m.open != "" {
		rightView = m.tracks.View()
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, left.Render(m.liked.View()), right.Render(rightView))

	helpKeys := []key.Binding{m.keys.tab, m.keys.enter, m.keys.like, m.keys.add, m.keys.settings, m.keys.refresh, m.keys.quit}
	if m.focus == tracksPane {
		helpKeys = append([]key.Binding{m.keys.back}, helpKeys...)
	}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", m.renderHeader(), body, m.renderStatus(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderPicker() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n\n%s", m.renderHeader(), m.picker.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSettings() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(styles.title.Render("Settings"))
	b.WriteString("\n")

	for _, r := range m.sections {
		doc, err := r.Document()
		if err != nil {
			detail := err.Error()
			if f, ok := r.Failure(); ok {
				detail = fmt.Sprintf("%s (%d)", f.Detail(), f.Status)
			}
			b.WriteString(styles.err.Render(fmt.Sprintf("✗ %s: %s", r.Section, detail)))
			b.WriteString("\n")
			continue
		}

		b.WriteString(styles.ok.Render("✓ " + r.Section.String()))
		b.WriteString("\n")
		if r.Section == models.SectionFull {
			continue
		}
		data, err := formatter.Document(formatter.FormatYAML, doc)
		if err != nil {
			b.WriteString(styles.warn.Render(err.Error()))
			b.WriteString("\n")
			continue
		}
		b.WriteString(styles.As(indent(string(data)), lipgloss.Color("#626262")))
		b.WriteString("\n")
	}

	helpKeys := []key.Binding{m.keys.refresh, m.keys.back, m.keys.quit}
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
