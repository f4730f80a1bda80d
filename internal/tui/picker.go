package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/doorstep-home/doorstep/internal/discovery"
	"github.com/doorstep-home/doorstep/internal/urls"
)

// stateMsg carries a merged discovery snapshot into the bubbletea loop
type stateMsg discovery.MergedState

// updatesClosedMsg signals that the engine's subscription ended
type updatesClosedMsg struct{}

// defaultListHeight sizes the server list before the first terminal
// size message arrives
const defaultListHeight = 14

// pickerKeyMap defines key bindings for the picker screen
type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Pause  key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Pause, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Pause, k.Quit},
	}
}

// serverItem wraps a ServerRecord for use with bubbles/list
type serverItem struct {
	record discovery.ServerRecord
}

// FilterValue implements list.Item; filter by name, host, or source
func (s serverItem) FilterValue() string {
	return s.record.Name + " " + s.record.Host + " " + string(s.record.Source)
}

// Title returns the server name for list display
func (s serverItem) Title() string {
	return s.record.Name
}

// Description returns server details for list display
func (s serverItem) Description() string {
	return fmt.Sprintf("%s:%d • via %s", s.record.Host, s.record.Port, s.record.Source)
}

// PickerModel is a live server-picker screen. It subscribes to the merge
// engine and re-renders on every published snapshot, so servers appear,
// rename, and disappear while the user is looking at the list.
type PickerModel struct {
	engine      *discovery.MergeEngine
	updates     <-chan discovery.MergedState
	unsubscribe func()

	state    discovery.MergedState
	selected *discovery.ServerRecord
	err      error

	width       int
	height      int
	serverList  list.Model
	spin        spinner.Model
	progressBar progress.Model
	helpView    help.Model
	keys        pickerKeyMap
}

// NewPickerModel creates a picker bound to the given engine. The engine
// must already be constructed; the model starts it from Init.
func NewPickerModel(engine *discovery.MergeEngine) PickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	// A real size arrives with the first WindowSizeMsg; until then the
	// list must still be renderable, not zero-height.
	delegate := list.NewDefaultDelegate()
	serverList := list.New([]list.Item{}, delegate, MinTerminalWidth, defaultListHeight)
	serverList.Title = "Doorstep Servers"
	serverList.SetShowStatusBar(false)
	serverList.SetFilteringEnabled(true)
	serverList.Styles.Title = TitleStyle

	keys := pickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/resume"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	updates, unsubscribe := engine.Subscribe()

	return PickerModel{
		engine:      engine,
		updates:     updates,
		unsubscribe: unsubscribe,
		serverList:  serverList,
		spin:        s,
		progressBar: progressBar,
		helpView:    help.New(),
		keys:        keys,
	}
}

// Selected returns the record the user picked, or nil if they quit
func (m PickerModel) Selected() *discovery.ServerRecord {
	return m.selected
}

// Err returns the startup error, if discovery failed to start entirely
func (m PickerModel) Err() error {
	return m.err
}

// Init starts discovery and begins waiting for snapshots
func (m PickerModel) Init() tea.Cmd {
	return tea.Batch(
		m.startDiscovery,
		m.waitForUpdate(),
		m.spin.Tick,
	)
}

// startDiscovery starts the engine; a total failure surfaces on screen
func (m PickerModel) startDiscovery() tea.Msg {
	if err := m.engine.Start(); err != nil {
		return err
	}
	return nil
}

// waitForUpdate blocks for the next merged snapshot
func (m PickerModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-m.updates
		if !ok {
			return updatesClosedMsg{}
		}
		return stateMsg(st)
	}
}

// Update handles messages and updates the model
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.serverList.SetWidth(msg.Width - 4)
		height := msg.Height - 10
		if height < 4 {
			height = 4
		}
		m.serverList.SetHeight(height)

	case stateMsg:
		m.state = discovery.MergedState(msg)
		items := make([]list.Item, len(m.state.Servers))
		for i, rec := range m.state.Servers {
			items[i] = serverItem{record: rec}
		}
		m.serverList.SetItems(items)
		return m, m.waitForUpdate()

	case updatesClosedMsg:
		return m, tea.Quit

	case error:
		m.err = msg
		return m, nil

	case spinner.TickMsg:
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	m.serverList, cmd = m.serverList.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input
func (m PickerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.unsubscribe()
		m.engine.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Enter):
		if item, ok := m.serverList.SelectedItem().(serverItem); ok {
			rec := item.record
			m.selected = &rec
			m.unsubscribe()
			m.engine.Stop()
			return m, tea.Quit
		}

	case key.Matches(msg, m.keys.Rescan):
		m.err = nil
		m.engine.Stop()
		return m, m.startDiscovery

	case key.Matches(msg, m.keys.Pause):
		if m.state.Paused {
			if err := m.engine.Resume(); err != nil {
				m.err = err
			}
		} else {
			m.engine.Pause()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.serverList, cmd = m.serverList.Update(msg)
	return m, cmd
}

// View renders the picker screen
func (m PickerModel) View() string {
	width := m.width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content string
	switch {
	case m.err != nil:
		content = m.renderError()
	case len(m.state.Servers) == 0 && m.state.Scanning:
		content = m.renderScanning(width)
	case len(m.state.Servers) == 0:
		content = m.renderEmpty()
	default:
		content = m.renderResults()
	}

	return content + "\n" + m.helpView.View(m.keys)
}

// renderScanning shows a centered progress display while nothing is found yet
func (m PickerModel) renderScanning(width int) string {
	title := fmt.Sprintf("%s SEARCHING FOR SERVERS", m.spin.View())
	subtitle := "Listening for announcements and browsing mDNS..."

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(title),
		"",
		SubtitleStyle.Render(subtitle),
		"",
		m.progressBar.ViewAs(m.state.Progress),
		"",
	)

	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderResults shows the live server list, with a paused banner if needed
func (m PickerModel) renderResults() string {
	var b strings.Builder
	if m.state.Paused {
		b.WriteString(WarningStyle.Render("  ⏸ Discovery paused"))
		b.WriteString("\n")
	}
	b.WriteString(m.serverList.View())
	return b.String()
}

// renderEmpty shows the no-servers-found screen with troubleshooting hints
func (m PickerModel) renderEmpty() string {
	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(WarningStyle.Render("⚠ No servers found on your network"))
	b.WriteString("\n\n")
	b.WriteString("  Troubleshooting:\n")
	b.WriteString("    • Ensure the server is powered on and on the same network\n")
	b.WriteString("    • Check that your network allows multicast and mDNS\n")
	b.WriteString("    • Press 'r' to rescan\n")
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("  See " + urls.DiscoveryTroubleshooting))
	b.WriteString("\n")

	return b.String()
}

// renderError shows a failed-to-start screen distinct from "nothing found"
func (m PickerModel) renderError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(RenderError(fmt.Sprintf("Scan failed to start: %v", m.err)))
	b.WriteString("\n\n")
	b.WriteString("  Troubleshooting:\n")
	b.WriteString("    • Another process may be bound to the announcement port\n")
	b.WriteString("    • Press 'r' to retry the scan\n")
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("  See " + urls.NetworkRequirements))
	b.WriteString("\n")

	return b.String()
}

// RunPicker runs the interactive picker and returns the user's selection,
// or nil if they quit without choosing.
func RunPicker(engine *discovery.MergeEngine) (*discovery.ServerRecord, error) {
	p := tea.NewProgram(NewPickerModel(engine), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("picker failed: %w", err)
	}

	model, ok := final.(PickerModel)
	if !ok {
		return nil, fmt.Errorf("unexpected final model type %T", final)
	}
	return model.Selected(), nil
}
