package ui

import (
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap holds the monitor's bindings outside setup mode
type keyMap struct {
	Connect    key.Binding
	Disconnect key.Binding
	Track      key.Binding
	Record     key.Binding
	Setup      key.Binding
	Calibrate  key.Binding
	Validate   key.Binding
	CalPoints  key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Connect: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "connect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "disconnect"),
		),
		Track: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "tracking"),
		),
		Record: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "recording"),
		),
		Setup: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "setup"),
		),
		Calibrate: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "calibrate"),
		),
		Validate: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "validate"),
		),
		CalPoints: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "cycle points"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Track, k.Record, k.Calibrate, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Disconnect, k.Track, k.Record},
		{k.Setup, k.Calibrate, k.Validate, k.CalPoints},
		{k.Help, k.Quit},
	}
}

var specialKeys = map[tea.KeyType]struct {
	key  eyetracker.Key
	mods eyetracker.Modifier
}{
	tea.KeyEnter:      {eyetracker.KeyReturn, 0},
	tea.KeyEsc:        {eyetracker.KeyEscape, 0},
	tea.KeyTab:        {eyetracker.KeyTab, 0},
	tea.KeyShiftTab:   {eyetracker.KeyTab, eyetracker.ModShift},
	tea.KeyBackspace:  {eyetracker.KeyBackSpace, 0},
	tea.KeySpace:      {' ', 0},
	tea.KeyUp:         {eyetracker.KeyUp, 0},
	tea.KeyDown:       {eyetracker.KeyDown, 0},
	tea.KeyLeft:       {eyetracker.KeyLeft, 0},
	tea.KeyRight:      {eyetracker.KeyRight, 0},
	tea.KeyShiftUp:    {eyetracker.KeyUp, eyetracker.ModShift},
	tea.KeyShiftDown:  {eyetracker.KeyDown, eyetracker.ModShift},
	tea.KeyShiftLeft:  {eyetracker.KeyLeft, eyetracker.ModShift},
	tea.KeyShiftRight: {eyetracker.KeyRight, eyetracker.ModShift},
	tea.KeyCtrlUp:     {eyetracker.KeyUp, eyetracker.ModControl},
	tea.KeyCtrlDown:   {eyetracker.KeyDown, eyetracker.ModControl},
	tea.KeyCtrlLeft:   {eyetracker.KeyLeft, eyetracker.ModControl},
	tea.KeyCtrlRight:  {eyetracker.KeyRight, eyetracker.ModControl},
	tea.KeyHome:       {eyetracker.KeyHome, 0},
	tea.KeyEnd:        {eyetracker.KeyEnd, 0},
	tea.KeyPgUp:       {eyetracker.KeyPageUp, 0},
	tea.KeyPgDown:     {eyetracker.KeyPageDown, 0},
	tea.KeyF1:         {eyetracker.KeyF1, 0},
	tea.KeyF2:         {eyetracker.KeyF2, 0},
	tea.KeyF3:         {eyetracker.KeyF3, 0},
	tea.KeyF4:         {eyetracker.KeyF4, 0},
	tea.KeyF5:         {eyetracker.KeyF5, 0},
	tea.KeyF6:         {eyetracker.KeyF6, 0},
	tea.KeyF7:         {eyetracker.KeyF7, 0},
	tea.KeyF8:         {eyetracker.KeyF8, 0},
	tea.KeyF9:         {eyetracker.KeyF9, 0},
	tea.KeyF10:        {eyetracker.KeyF10, 0},
	tea.KeyF11:        {eyetracker.KeyF11, 0},
	tea.KeyF12:        {eyetracker.KeyF12, 0},
}

// hostKey converts a terminal key press into a host keysym and modifier
// mask. It reports false for keys with no single-keysym equivalent.
func hostKey(msg tea.KeyMsg) (eyetracker.Key, eyetracker.Modifier, bool) {
	var alt eyetracker.Modifier
	if msg.Alt {
		alt = eyetracker.ModAlt
	}

	if k, ok := specialKeys[msg.Type]; ok {
		return k.key, k.mods | alt, true
	}

	switch {
	case msg.Type == tea.KeyRunes:
		if len(msg.Runes) != 1 || msg.Runes[0] > 0x7e || msg.Runes[0] < 0x20 {
			return 0, 0, false
		}
		r := msg.Runes[0]
		var mods eyetracker.Modifier
		if r >= 'A' && r <= 'Z' {
			mods = eyetracker.ModShift
		}
		return eyetracker.Key(r), mods | alt, true
	case msg.Type >= tea.KeyCtrlA && msg.Type <= tea.KeyCtrlZ:
		letter := 'a' + rune(msg.Type-tea.KeyCtrlA)
		return eyetracker.Key(letter), eyetracker.ModControl | alt, true
	}
	return 0, 0, false
}
