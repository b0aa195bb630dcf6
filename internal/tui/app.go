package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bankchat/internal/catalog"
	"bankchat/internal/dispatch"
	"bankchat/internal/session"
	"bankchat/internal/utils"
)

const (
	focusAccount = iota
	focusPIN
	focusChat
	focusCommands
)

const (
	hintAccount = "Invalid account format, expected ABC1234."
	hintPIN     = "PIN must be exactly 4 digits."
	typingText  = "Bot is typing…"
)

var (
	headerStyle         = lipgloss.NewStyle().Bold(true)
	footerStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	dimStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	confirmStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	okStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	inputBackground     = lipgloss.AdaptiveColor{Light: "252", Dark: "236"}
	msgBoxStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Background(inputBackground)
	tabStyle            = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle      = lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(lipgloss.Color("214"))
	buttonStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1).MarginRight(1)
	selectedButtonStyle = buttonStyle.BorderForeground(lipgloss.Color("214")).Bold(true)
)

// Options wires the TUI to an existing session.
type Options struct {
	Dispatcher *dispatch.Dispatcher
	Catalog    *catalog.Catalog
	Logger     *utils.Logger
	ExportDir  string
}

type model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *utils.Logger
	store     *session.Store
	dispatch  *dispatch.Dispatcher
	catalog   *catalog.Catalog
	exportDir string

	width  int
	height int
	snap   session.Snapshot

	accountInput textinput.Model
	pinInput     textinput.Model
	chatInput    textinput.Model
	focus        int
	cmdIndex     int

	transcript viewport.Model
	spinner    spinner.Model
	keys       keyMap
	help       help.Model
	showHelp   bool

	commandMode    bool
	commandInput   textinput.Model
	commandIndex   int
	commandResults []commandSpec

	errMsg  string
	infoMsg string
}

type storeChangedMsg struct{}

type turnDoneMsg struct {
	source string
	err    error
}

type exportedMsg struct {
	path string
	err  error
}

// Run starts the program and blocks until the user quits.
func Run(opts Options) error {
	m := newModel(opts)
	defer m.cancel()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

func newModel(opts Options) model {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger("info", nil)
	}
	ctx, cancel := context.WithCancel(context.Background())

	accountInput := textinput.New()
	accountInput.Placeholder = "ABC1234"
	accountInput.Prompt = "Account  "
	accountInput.CharLimit = 7
	accountInput.Width = 12
	accountInput.Focus()

	pinInput := textinput.New()
	pinInput.Placeholder = "4 digits"
	pinInput.Prompt = "PIN      "
	pinInput.CharLimit = 4
	pinInput.Width = 12
	pinInput.EchoMode = textinput.EchoPassword
	pinInput.EchoCharacter = '•'

	chatInput := textinput.New()
	chatInput.Placeholder = "Type a message"
	chatInput.Prompt = "› "

	commandInput := textinput.New()
	commandInput.Placeholder = "command"
	commandInput.Prompt = "/ "

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = dimStyle

	store := opts.Dispatcher.Store()
	m := model{
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
		store:        store,
		dispatch:     opts.Dispatcher,
		catalog:      opts.Catalog,
		exportDir:    opts.ExportDir,
		snap:         store.Get(),
		accountInput: accountInput,
		pinInput:     pinInput,
		chatInput:    chatInput,
		focus:        focusAccount,
		transcript:   viewport.New(0, 0),
		spinner:      spin,
		keys:         defaultKeyMap,
		help:         help.New(),
		commandInput: commandInput,
	}
	if opts.Dispatcher.Handshake() == dispatch.HandshakeIncremental {
		m.setFocus(focusChat)
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenStore(m.store))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.syncTranscript()
		return m, nil
	case storeChangedMsg:
		wasBusy := m.snap.Busy
		wasVerified := m.snap.Verified
		m.snap = m.store.Get()
		m.syncTranscript()
		cmds := []tea.Cmd{listenStore(m.store)}
		if m.snap.Busy && !wasBusy {
			cmds = append(cmds, m.spinner.Tick)
		}
		if m.snap.Verified && !wasVerified {
			m.logger.Infof("session verified")
			cmds = append(cmds, m.setFocus(focusChat))
		}
		return m, tea.Batch(cmds...)
	case turnDoneMsg:
		m.handleTurnError(msg.source, msg.err)
		return m, nil
	case exportedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.logger.Errorf("export failed: %v", msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.infoMsg = "Transcript saved to " + msg.path
		return m, nil
	case spinner.TickMsg:
		if !m.snap.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.syncTranscript()
		return m, cmd
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, m.updateFocusedInput(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.commandMode {
		return m.handleCommandKey(msg)
	}
	if key.Matches(msg, m.keys.Command) || (msg.String() == "/" && m.focus == focusChat && m.chatInput.Value() == "") {
		m.openCommandPalette()
		return m, nil
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if key.Matches(msg, m.keys.ScrollUp) || key.Matches(msg, m.keys.ScrollDn) {
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	if msg.String() == "esc" {
		m.errMsg = ""
		m.infoMsg = ""
		m.showHelp = false
		return m, nil
	}

	switch m.focus {
	case focusAccount, focusPIN:
		return m.handleLoginKey(msg)
	case focusCommands:
		return m.handleCommandsKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField):
		if m.focus == focusAccount {
			return m, m.setFocus(focusPIN)
		}
		return m, m.setFocus(focusChat)
	case key.Matches(msg, m.keys.PrevField):
		if m.focus == focusPIN {
			return m, m.setFocus(focusAccount)
		}
		return m, m.setFocus(focusChat)
	case key.Matches(msg, m.keys.Submit):
		if !m.canLogin() {
			if m.focus == focusAccount && m.snap.AccountValid() {
				return m, m.setFocus(focusPIN)
			}
			return m, nil
		}
		m.errMsg = ""
		return m, loginCmd(m.ctx, m.dispatch, m.snap.Credentials.AccountNumber, m.snap.Credentials.PIN)
	}

	var cmd tea.Cmd
	if m.focus == focusAccount {
		m.accountInput, cmd = m.accountInput.Update(msg)
		value := session.NormalizeAccountInput(m.accountInput.Value())
		if value != m.accountInput.Value() {
			m.accountInput.SetValue(value)
			m.accountInput.CursorEnd()
		}
		m.store.SetAccountNumber(value)
	} else {
		m.pinInput, cmd = m.pinInput.Update(msg)
		value := session.NormalizePINInput(m.pinInput.Value())
		if value != m.pinInput.Value() {
			m.pinInput.SetValue(value)
			m.pinInput.CursorEnd()
		}
		m.store.SetPIN(value)
	}
	m.snap = m.store.Get()
	return m, cmd
}

func (m model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		if m.snap.Verified {
			return m, m.setFocus(focusCommands)
		}
		if m.loginVisible() {
			return m, m.setFocus(focusAccount)
		}
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.chatInput.Value())
		if text == "" || m.snap.Busy {
			return m, nil
		}
		m.chatInput.SetValue("")
		m.errMsg = ""
		return m, submitCmd(m.ctx, m.dispatch, text)
	case msg.String() == "up" || msg.String() == "down":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) handleCommandsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cats := m.catalog.Categories()
	switch {
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		return m, m.setFocus(focusChat)
	case key.Matches(msg, m.keys.NextTab), key.Matches(msg, m.keys.PrevTab):
		delta := 1
		if key.Matches(msg, m.keys.PrevTab) {
			delta = -1
		}
		idx := categoryIndex(cats, m.snap.ActiveCategory)
		next := (idx + delta + len(cats)) % len(cats)
		m.catalog.Select(cats[next])
		m.snap = m.store.Get()
		m.cmdIndex = 0
		return m, nil
	case key.Matches(msg, m.keys.Left):
		if m.cmdIndex > 0 {
			m.cmdIndex--
		}
		return m, nil
	case key.Matches(msg, m.keys.Right):
		if m.cmdIndex < len(m.catalog.Commands(m.snap.ActiveCategory))-1 {
			m.cmdIndex++
		}
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.snap.Busy {
			return m, nil
		}
		m.errMsg = ""
		return m, invokeCmd(m.ctx, m.catalog, m.snap.ActiveCategory, m.cmdIndex)
	}
	return m, nil
}

func (m *model) handleTurnError(source string, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, dispatch.ErrInvalidAccountNumber):
		m.errMsg = hintAccount
	case errors.Is(err, dispatch.ErrInvalidPIN):
		m.errMsg = hintPIN
	case errors.Is(err, dispatch.ErrBusy), errors.Is(err, catalog.ErrBusy):
		m.errMsg = "Please wait for the current reply."
	default:
		m.errMsg = err.Error()
	}
	m.logger.Warnf("%s: %v", source, err)
}

func (m model) canLogin() bool {
	return !m.snap.Busy && !m.snap.Verified && m.snap.Credentials.Complete()
}

func (m *model) setFocus(focus int) tea.Cmd {
	m.focus = focus
	m.accountInput.Blur()
	m.pinInput.Blur()
	m.chatInput.Blur()
	switch focus {
	case focusAccount:
		return m.accountInput.Focus()
	case focusPIN:
		return m.pinInput.Focus()
	case focusChat:
		return m.chatInput.Focus()
	}
	return nil
}

func (m *model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case focusAccount:
		m.accountInput, cmd = m.accountInput.Update(msg)
	case focusPIN:
		m.pinInput, cmd = m.pinInput.Update(msg)
	case focusChat:
		m.chatInput, cmd = m.chatInput.Update(msg)
	}
	return cmd
}

func (m model) loginVisible() bool {
	return !m.snap.Verified && m.dispatch.Handshake() == dispatch.HandshakeExplicit
}

func (m model) View() string {
	sections := []string{m.renderHeader()}
	if m.loginVisible() {
		sections = append(sections, "", m.renderLogin())
	}
	sections = append(sections, "", m.transcript.View())
	if m.snap.Verified {
		sections = append(sections, "", renderTabs(m.snap.ActiveCategory, m.focus == focusCommands))
		sections = append(sections, renderButtons(m.catalog.Commands(m.snap.ActiveCategory), m.cmdIndex, m.focus == focusCommands))
	}
	sections = append(sections, msgBoxStyle.Width(m.inputWidth()).Render(m.chatInput.View()))
	if m.errMsg != "" {
		sections = append(sections, errStyle.Render(m.errMsg))
	} else if m.infoMsg != "" {
		sections = append(sections, okStyle.Render(m.infoMsg))
	}
	footer := footerStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	if m.showHelp {
		footer = footerStyle.Render(m.help.FullHelpView(m.keys.FullHelp()))
	}
	sections = append(sections, footer)
	base := strings.Join(sections, "\n")
	if m.commandMode {
		return overlayModal(dimStyle.Render(base), m.renderCommandModal(), m.width, m.height)
	}
	return base
}

func (m model) renderHeader() string {
	name := "Guest"
	if m.snap.DisplayName != "" {
		name = m.snap.DisplayName
	}
	account := "not logged in"
	if m.snap.Verified {
		account = m.snap.Credentials.AccountNumber
	}
	status := dimStyle.Render("locked")
	if m.snap.Verified {
		status = okStyle.Render("verified")
	}
	parts := []string{
		headerStyle.Render("🏦 Bank Assistant"),
		"👤 " + name,
		"Account " + account,
		"Balance " + headerStyle.Render(balanceText(m.snap)),
		status,
	}
	if m.snap.Busy {
		parts = append(parts, m.spinner.View())
	}
	return strings.Join(parts, "  ")
}

func (m model) renderLogin() string {
	lines := []string{headerStyle.Render("Login"), m.accountInput.View()}
	if m.snap.Credentials.AccountNumber != "" && !m.snap.AccountValid() {
		lines = append(lines, errStyle.Render("  "+hintAccount))
	}
	lines = append(lines, m.pinInput.View())
	if m.snap.Credentials.PIN != "" && !m.snap.PINValid() {
		lines = append(lines, errStyle.Render("  "+hintPIN))
	}
	proceed := dimStyle.Render("[ Proceed ]")
	if m.canLogin() {
		proceed = confirmStyle.Render("[ Proceed ]") + dimStyle.Render("  press enter")
	}
	lines = append(lines, "", proceed)
	return strings.Join(lines, "\n")
}

func (m model) inputWidth() int {
	if m.width <= 4 {
		return 40
	}
	return m.width - 4
}

// transcriptHeight is what is left once the fixed sections are laid out.
func (m model) transcriptHeight() int {
	used := 6
	if m.loginVisible() {
		used += 8
	}
	if m.snap.Verified {
		used += 5
	}
	if m.showHelp {
		used += 4
	}
	h := m.height - used
	if h < 3 {
		h = 3
	}
	return h
}

func (m *model) syncTranscript() {
	width := m.inputWidth()
	height := m.transcriptHeight()
	m.transcript.Width = width
	m.transcript.Height = height
	typing := m.spinner.View() + " " + typingText
	lines := transcriptLines(m.snap, width-4, typing)
	atBottom := m.transcript.AtBottom()
	m.transcript.SetContent(padLines(lines, max(len(lines), height)))
	if atBottom || m.snap.Busy {
		m.transcript.GotoBottom()
	}
}

func categoryIndex(cats []session.Category, cat session.Category) int {
	for i, c := range cats {
		if c == cat {
			return i
		}
	}
	return 0
}

func overlayModal(base, modal string, width, height int) string {
	if width <= 0 || height <= 0 {
		return modal
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceChars(" "))
}

// listenStore waits for the next store change.
func listenStore(store *session.Store) tea.Cmd {
	ch := store.Changes()
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

func loginCmd(ctx context.Context, d *dispatch.Dispatcher, account, pin string) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{source: "login", err: d.Login(ctx, account, pin)}
	}
}

func submitCmd(ctx context.Context, d *dispatch.Dispatcher, text string) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{source: "send", err: d.Submit(ctx, text, false)}
	}
}

func invokeCmd(ctx context.Context, c *catalog.Catalog, cat session.Category, index int) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{source: fmt.Sprintf("quick command %s #%d", cat, index+1), err: c.Invoke(ctx, cat, index)}
	}
}

func exportCmd(path string, snap session.Snapshot, store *session.Store) tea.Cmd {
	return func() tea.Msg {
		return exportedMsg{path: path, err: writeExport(path, snap, store.Now())}
	}
}
