package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/fahmaliyi/passvault/vault"
)

const (
	stateTable  = "table"
	stateUnlock = "unlock"
	stateShow   = "showEntry"
	stateAdd    = "addEntry"
)

type model struct {
	app        *App
	services   []string
	cursor     int
	state      string
	keyInput   textinput.Model
	textInputs []textinput.Model
	selected   string
	cred       *vault.Credential
	reveal     bool
	msg        string
	msgErr     bool
}

type credentialMsg struct {
	service string
	cred    vault.Credential
	err     error
}

type addedMsg struct {
	service string
	result  vault.AddResult
	err     error
}

type clipboardClearMsg struct{}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
)

// RunTUI starts the interactive browser on the app's streams.
func RunTUI(a *App) error {
	p := tea.NewProgram(newModel(a), tea.WithInput(a.stdin), tea.WithOutput(a.out))
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run TUI")
	}
	return nil
}

func newModel(a *App) model {
	m := model{app: a, state: stateTable}
	m.keyInput = newSecretInput("Master key")
	m.textInputs = []textinput.Model{
		newInput("Service"),
		newInput("Username"),
		newSecretInput("Password"),
		newSecretInput("Master key"),
	}
	m.reload()
	return m
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	return ti
}

func newSecretInput(placeholder string) textinput.Model {
	ti := newInput(placeholder)
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	return ti
}

func (m *model) reload() {
	services, err := m.app.Vault.ListServices(m.app.path())
	if err != nil {
		m.fail("Error loading services: " + err.Error())
		return
	}
	m.services = services
	if m.cursor >= len(m.services) {
		m.cursor = max(len(m.services)-1, 0)
	}
}

// --- Tea Model interface ---
func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case credentialMsg:
		return m.onCredential(msg), nil
	case addedMsg:
		return m.onAdded(msg), nil
	case clipboardClearMsg:
		if err := m.app.copyText(""); err != nil {
			m.fail("Error clearing clipboard: " + err.Error())
		} else {
			m.note("Clipboard cleared.")
		}
		return m, nil
	}

	switch m.state {
	case stateTable:
		return updateTable(m, msg)
	case stateUnlock:
		return updateUnlock(m, msg)
	case stateShow:
		return updateShowEntry(m, msg)
	case stateAdd:
		return updateAddEntry(m, msg)
	default:
		return m, nil
	}
}

func (m model) View() string {
	switch m.state {
	case stateTable:
		return viewTable(m)
	case stateUnlock:
		return viewUnlock(m)
	case stateShow:
		return viewShowEntry(m)
	case stateAdd:
		return viewAddEntry(m)
	default:
		return "Unknown state"
	}
}

// --- Table ---
func updateTable(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.services)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "r":
		m.reload()
	case "enter":
		if len(m.services) == 0 {
			return m, nil
		}
		m.selected = m.services[m.cursor]
		m.state = stateUnlock
		m.note("")
		m.keyInput.SetValue("")
		return m, m.keyInput.Focus()
	case "a":
		m.state = stateAdd
		m.note("")
		for i := range m.textInputs {
			m.textInputs[i].SetValue("")
			m.textInputs[i].Blur()
		}
		return m, m.textInputs[0].Focus()
	}
	return m, nil
}

func viewTable(m model) string {
	s := titleStyle.Render("Stored Services") + "\n\n"
	if len(m.services) == 0 {
		s += "No services found.\n"
	}
	for i, name := range m.services {
		line := fmt.Sprintf("%3d. %s", i+1, capitalize(name))
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		s += line + "\n"
	}
	s += m.footer()
	s += "\nCommands: j/k=move, enter=unlock, a=add, r=reload, q=quit"
	return s
}

// --- Unlock ---
func updateUnlock(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.keyInput.Blur()
			m.keyInput.SetValue("")
			m.state = stateTable
			return m, nil
		case "enter":
			mk := m.keyInput.Value()
			m.keyInput.SetValue("")
			m.keyInput.Blur()
			return m, unlockCmd(m.app, m.selected, mk)
		}
	}
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func unlockCmd(a *App, service, masterKey string) tea.Cmd {
	return func() tea.Msg {
		cred, err := a.Vault.GetPassword(a.path(), service, masterKey)
		return credentialMsg{service: service, cred: cred, err: err}
	}
}

func (m model) onCredential(msg credentialMsg) model {
	if msg.err != nil {
		m.state = stateTable
		if errors.Is(msg.err, vault.ErrNotFound) {
			m.fail("Service not found or invalid master key.")
		} else {
			m.fail("Error: " + msg.err.Error())
		}
		return m
	}
	cred := msg.cred
	m.cred = &cred
	m.selected = msg.service
	m.reveal = false
	m.state = stateShow
	m.note("")
	return m
}

func viewUnlock(m model) string {
	s := titleStyle.Render("Unlock "+capitalize(m.selected)) + "\n\n"
	s += m.keyInput.View() + "\n"
	s += "\nPress Enter to unlock, Esc to return"
	return s
}

// --- Show Entry ---
func updateShowEntry(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "esc":
		m.state = stateTable
		m.cred = nil
		m.reveal = false
	case "v":
		m.reveal = !m.reveal
	case "c":
		if !m.cred.PasswordOK {
			m.fail("Password is unreadable.")
			return m, nil
		}
		if err := m.app.copyText(m.cred.Password); err != nil {
			m.fail("Error copying to clipboard: " + err.Error())
			return m, nil
		}
		after := m.app.Config.Clipboard.ClearAfter
		m.note(fmt.Sprintf("Password copied! (clears in %s)", after))
		return m, tea.Tick(after, func(time.Time) tea.Msg { return clipboardClearMsg{} })
	}
	return m, nil
}

func viewShowEntry(m model) string {
	secret := "********"
	switch {
	case !m.cred.PasswordOK:
		secret = "<unreadable>"
	case m.reveal:
		secret = m.cred.Password
	}
	s := fmt.Sprintf("Service: %s\nUsername: %s\nPassword: %s\n",
		capitalize(m.selected), m.cred.Username, secret)
	s += m.footer()
	s += "\nPress 'v' to reveal, 'c' to copy, Esc to return"
	return s
}

// --- Add Entry ---
func updateAddEntry(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "down", "up":
			m.focusNext(key.String() == "shift+tab" || key.String() == "up")
			return m, nil
		case "esc":
			m.state = stateTable
			return m, nil
		case "enter":
			if !allInputsFilled(m.textInputs) {
				m.fail("All fields are required.")
				return m, nil
			}
			return m, m.saveAddEntry()
		}
	}

	// Update the focused text input
	var cmds []tea.Cmd
	for i := range m.textInputs {
		if m.textInputs[i].Focused() {
			var cmd tea.Cmd
			m.textInputs[i], cmd = m.textInputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

// Focus next or previous input
func (m *model) focusNext(backward bool) {
	n := len(m.textInputs)
	for i := 0; i < n; i++ {
		if m.textInputs[i].Focused() {
			m.textInputs[i].Blur()
			if backward {
				m.textInputs[(i-1+n)%n].Focus()
			} else {
				m.textInputs[(i+1)%n].Focus()
			}
			break
		}
	}
}

func (m model) saveAddEntry() tea.Cmd {
	a := m.app
	service := m.textInputs[0].Value()
	username := m.textInputs[1].Value()
	password := m.textInputs[2].Value()
	mk := m.textInputs[3].Value()
	return func() tea.Msg {
		res, err := a.Vault.AddPassword(a.path(), service, username, password, mk)
		return addedMsg{service: service, result: res, err: err}
	}
}

func (m model) onAdded(msg addedMsg) model {
	if msg.err != nil {
		m.fail("Error saving: " + msg.err.Error())
		return m
	}
	switch msg.result {
	case vault.AddCreated:
		m.note(capitalize(msg.service) + " added!")
	case vault.AddUpdated:
		m.note(capitalize(msg.service) + " password updated!")
	case vault.AddUnchanged:
		m.note("The new password is the same as the old password.")
	case vault.AddRejected:
		m.fail("Service already exists with a different username.")
		return m
	}
	for i := range m.textInputs {
		m.textInputs[i].SetValue("")
		m.textInputs[i].Blur()
	}
	m.state = stateTable
	m.reload()
	return m
}

func viewAddEntry(m model) string {
	s := titleStyle.Render("Add New Entry") + "\n\n"
	for i, ti := range m.textInputs {
		s += fmt.Sprintf("%s: %s\n", ti.Placeholder, ti.View())
		if i < len(m.textInputs)-1 {
			s += "\n"
		}
	}
	s += m.footer()
	s += "\nPress Enter to save, Tab to move, Esc to cancel"
	return s
}

func allInputsFilled(inputs []textinput.Model) bool {
	for _, ti := range inputs {
		if strings.TrimSpace(ti.Value()) == "" {
			return false
		}
	}
	return true
}

func (m *model) note(msg string) { m.msg, m.msgErr = msg, false }

func (m *model) fail(msg string) { m.msg, m.msgErr = msg, true }

func (m model) footer() string {
	switch {
	case m.msg == "":
		return ""
	case m.msgErr:
		return "\n" + errStyle.Render(m.msg) + "\n"
	default:
		return "\n" + msgStyle.Render(m.msg) + "\n"
	}
}
