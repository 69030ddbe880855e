package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press feeds a key to m and returns the updated model with its command.
func press(t *testing.T, m model, k string) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(keyMsg(k))
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func deliver(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	nm, ok := next.(model)
	require.True(t, ok)
	return nm
}

func TestTUI_AddUnlockReveal(t *testing.T) {
	a, _, clip := newTestApp(t, "")
	m := newModel(a)
	assert.Equal(t, stateTable, m.state)
	assert.Contains(t, m.View(), "No services found.")

	m, _ = press(t, m, "a")
	require.Equal(t, stateAdd, m.state)
	for i, v := range []string{"github", "alice", "p@ss1", "mk"} {
		m.textInputs[i].SetValue(v)
	}
	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)
	assert.Equal(t, stateTable, m.state)
	assert.Equal(t, []string{"github"}, m.services)
	assert.Contains(t, m.View(), "Github added!")

	m, _ = press(t, m, "enter")
	require.Equal(t, stateUnlock, m.state)
	m.keyInput.SetValue("mk")
	m, cmd = press(t, m, "enter")
	m = deliver(t, m, cmd)
	require.Equal(t, stateShow, m.state)
	require.NotNil(t, m.cred)
	assert.Equal(t, "alice", m.cred.Username)
	assert.NotContains(t, m.View(), "p@ss1")

	m, _ = press(t, m, "v")
	assert.Contains(t, m.View(), "p@ss1")

	m, cmd = press(t, m, "c")
	assert.NotNil(t, cmd)
	assert.Equal(t, []string{"p@ss1"}, clip.writes)
	next, _ := m.Update(clipboardClearMsg{})
	m = next.(model)
	assert.Equal(t, []string{"p@ss1", ""}, clip.writes)
	assert.Contains(t, m.View(), "Clipboard cleared.")

	m, _ = press(t, m, "esc")
	assert.Equal(t, stateTable, m.state)
	assert.Nil(t, m.cred)
}

func TestTUI_WrongKey(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	_, err := a.Vault.AddPassword(a.path(), "github", "alice", "p@ss1", "mk")
	require.NoError(t, err)
	m := newModel(a)

	m, _ = press(t, m, "enter")
	m.keyInput.SetValue("nope")
	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)

	assert.Equal(t, stateTable, m.state)
	assert.Nil(t, m.cred)
	assert.True(t, m.msgErr)
	assert.Contains(t, m.View(), "Service not found or invalid master key.")
}

func TestTUI_AddRejectedStaysOnForm(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	_, err := a.Vault.AddPassword(a.path(), "github", "alice", "p@ss1", "mk")
	require.NoError(t, err)
	m := newModel(a)

	m, _ = press(t, m, "a")
	for i, v := range []string{"github", "bob", "x", "mk"} {
		m.textInputs[i].SetValue(v)
	}
	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)

	assert.Equal(t, stateAdd, m.state)
	assert.Contains(t, m.View(), "different username")
}

func TestTUI_AddRequiresAllFields(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	m := newModel(a)

	m, _ = press(t, m, "a")
	m.textInputs[0].SetValue("github")
	m, cmd := press(t, m, "enter")

	assert.Nil(t, cmd)
	assert.Equal(t, stateAdd, m.state)
	assert.Contains(t, m.View(), "All fields are required.")

	m, _ = press(t, m, "esc")
	assert.Equal(t, stateTable, m.state)
}

func TestTUI_FormFocusCycles(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	m := newModel(a)

	m, _ = press(t, m, "a")
	require.True(t, m.textInputs[0].Focused())
	for i := 1; i <= len(m.textInputs); i++ {
		m, _ = press(t, m, "tab")
		assert.True(t, m.textInputs[i%len(m.textInputs)].Focused(), "input %d", i)
	}
}

func TestTUI_Navigation(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	for _, s := range []string{"a", "b", "c"} {
		_, err := a.Vault.AddPassword(a.path(), s, "u", "p", "mk")
		require.NoError(t, err)
	}
	m := newModel(a)

	m, _ = press(t, m, "j")
	m, _ = press(t, m, "down")
	m, _ = press(t, m, "j")
	assert.Equal(t, 2, m.cursor)
	m, _ = press(t, m, "k")
	assert.Equal(t, 1, m.cursor)

	_, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
