package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultWidth  = 80
	defaultHeight = 20
)

// Picker is a filterable list that returns the item chosen with enter.
type Picker struct {
	list   list.Model
	keys   keyMap
	chosen list.Item
}

// NewPicker builds a picker over items, see [PlaylistItems] and [ResultItems].
func NewPicker(title string, items []list.Item) *Picker {
	keys := newKeyMap()
	l := list.New(items, list.NewDefaultDelegate(), defaultWidth, defaultHeight)
	l.Title = title
	l.Styles.Title = styles.title
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.enter} }
	return &Picker{list: l, keys: keys}
}

func (p *Picker) Init() tea.Cmd { return nil }

func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.list.SetSize(msg.Width, msg.Height-2)
		return p, nil

	case tea.KeyMsg:
		if p.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, p.keys.enter):
			p.chosen = p.list.SelectedItem()
			return p, tea.Quit
		case key.Matches(msg, p.keys.quit), key.Matches(msg, p.keys.back):
			if p.list.FilterState() == list.FilterApplied && key.Matches(msg, p.keys.back) {
				break
			}
			return p, tea.Quit
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

func (p *Picker) View() string { return p.list.View() }

// Chosen returns the selected item, or nil when the picker was dismissed.
func (p *Picker) Chosen() list.Item { return p.chosen }

// RunPicker runs p as a full-screen program and returns the chosen item.
func RunPicker(ctx context.Context, p *Picker, opts ...tea.ProgramOption) (list.Item, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	if _, err := tea.NewProgram(p, opts...).Run(); err != nil {
		return nil, err
	}
	return p.chosen, nil
}
