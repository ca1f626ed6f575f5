package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openbootdotdev/devenv/internal/snapshot"
)

var (
	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fff"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22c55e"))

	descStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444")).
			MarginTop(1)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888"))

	diffAddStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	diffDelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))

	strategyStyles = map[snapshot.MergeStrategy]lipgloss.Style{
		snapshot.StrategySkip:      lipgloss.NewStyle().Foreground(lipgloss.Color("#666")),
		snapshot.StrategyOverwrite: lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308")),
		snapshot.StrategyRename:    lipgloss.NewStyle().Foreground(lipgloss.Color("#60a5fa")),
	}
)

var strategyCycle = []snapshot.MergeStrategy{
	snapshot.StrategySkip,
	snapshot.StrategyOverwrite,
	snapshot.StrategyRename,
}

// ConflictResolverModel lets the user pick a merge strategy for each
// conflicting custom template before an import is confirmed.
type ConflictResolverModel struct {
	conflicts    []snapshot.TemplateConflict
	cursor       int
	scrollOffset int
	showDiff     bool
	editing      bool
	input        textinput.Model
	confirmed    bool
	width        int
	height       int
}

func NewConflictResolver(conflicts []snapshot.TemplateConflict) ConflictResolverModel {
	in := textinput.New()
	in.Placeholder = "leave empty to generate one"
	in.Prompt = "New ID: "
	in.CharLimit = 64

	return ConflictResolverModel{
		conflicts: append([]snapshot.TemplateConflict(nil), conflicts...),
		input:     in,
	}
}

func (m ConflictResolverModel) Init() tea.Cmd {
	return nil
}

func (m ConflictResolverModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		if len(m.conflicts) == 0 {
			if key.Matches(msg, keys.Enter) {
				m.confirmed = true
			}
			return m, tea.Quit
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.scrollOffset {
					m.scrollOffset = m.cursor
				}
			}

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.conflicts)-1 {
				m.cursor++
				visibleItems := m.getVisibleItems()
				if m.cursor >= m.scrollOffset+visibleItems {
					m.scrollOffset = m.cursor - visibleItems + 1
				}
			}

		case key.Matches(msg, keys.Space):
			return m.setStrategy(nextStrategy(m.conflicts[m.cursor].Strategy))

		case key.Matches(msg, keys.Skip):
			return m.setStrategy(snapshot.StrategySkip)

		case key.Matches(msg, keys.Overwrite):
			return m.setStrategy(snapshot.StrategyOverwrite)

		case key.Matches(msg, keys.Rename):
			return m.setStrategy(snapshot.StrategyRename)

		case key.Matches(msg, keys.Diff):
			m.showDiff = !m.showDiff

		case key.Matches(msg, keys.SkipAll):
			for i := range m.conflicts {
				m.conflicts[i].Strategy = snapshot.StrategySkip
				m.conflicts[i].NewName = ""
			}

		case key.Matches(msg, keys.Enter):
			m.confirmed = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m ConflictResolverModel) setStrategy(s snapshot.MergeStrategy) (tea.Model, tea.Cmd) {
	c := &m.conflicts[m.cursor]
	c.Strategy = s
	if s != snapshot.StrategyRename {
		c.NewName = ""
		return m, nil
	}
	m.editing = true
	m.input.SetValue(c.NewName)
	return m, m.input.Focus()
}

func (m ConflictResolverModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.conflicts[m.cursor].NewName = strings.TrimSpace(m.input.Value())
		m.editing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func nextStrategy(s snapshot.MergeStrategy) snapshot.MergeStrategy {
	for i, c := range strategyCycle {
		if c == s {
			return strategyCycle[(i+1)%len(strategyCycle)]
		}
	}
	return snapshot.StrategySkip
}

func (m ConflictResolverModel) getVisibleItems() int {
	if m.height == 0 {
		return 15
	}
	available := m.height - 8
	if m.showDiff {
		available /= 2
	}
	if available < 5 {
		available = 5
	}
	if available > 20 {
		available = 20
	}
	return available
}

func (m ConflictResolverModel) View() string {
	var lines []string

	lines = append(lines, titleStyle.Render(fmt.Sprintf("Resolve %d conflicting templates", len(m.conflicts))))

	visibleItems := m.getVisibleItems()
	endIdx := m.scrollOffset + visibleItems
	if endIdx > len(m.conflicts) {
		endIdx = len(m.conflicts)
	}

	for i := m.scrollOffset; i < endIdx; i++ {
		c := m.conflicts[i]
		cursor := "  "
		style := itemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}

		label := strategyStyles[c.Strategy].Render(fmt.Sprintf("[%-9s]", c.Strategy))
		detail := fmt.Sprintf("local: %s", c.Existing.Name)
		if c.Strategy == snapshot.StrategyRename {
			if c.NewName != "" {
				detail = "as " + c.NewName
			} else {
				detail = "as a generated id"
			}
		}
		lines = append(lines, fmt.Sprintf("%s%s %s %s", cursor, label, style.Render(c.Imported.ID), descStyle.Render(detail)))
	}

	if m.editing {
		lines = append(lines, "", m.input.View())
	}

	if m.showDiff && len(m.conflicts) > 0 {
		lines = append(lines, "")
		for _, l := range strings.Split(snapshot.ConflictDiff(m.conflicts[m.cursor]), "\n") {
			lines = append(lines, renderDiffLine(truncateLine(l, m.width)))
		}
	}

	lines = append(lines, "")
	lines = append(lines, countStyle.Render(fmt.Sprintf("Applying: %d of %d", m.resolvedCount(), len(m.conflicts))))
	lines = append(lines, helpStyle.Render("↑↓: navigate • Space: cycle • s/o/r: skip/overwrite/rename • d: diff • S: skip all • Enter: confirm • q: quit"))

	return strings.Join(lines, "\n")
}

func (m ConflictResolverModel) resolvedCount() int {
	r := snapshot.MergeResolution{Conflicts: m.conflicts}
	return r.ResolvedCount()
}

func (m ConflictResolverModel) Conflicts() []snapshot.TemplateConflict {
	return m.conflicts
}

func (m ConflictResolverModel) Confirmed() bool {
	return m.confirmed
}

func renderDiffLine(l string) string {
	switch {
	case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
		return descStyle.Render(l)
	case strings.HasPrefix(l, "+"):
		return diffAddStyle.Render(l)
	case strings.HasPrefix(l, "-"):
		return diffDelStyle.Render(l)
	}
	return l
}

func truncateLine(s string, maxWidth int) string {
	if maxWidth <= 0 || len(s) <= maxWidth {
		return s
	}
	if maxWidth < 10 {
		return s[:maxWidth]
	}
	return s[:maxWidth-3] + "..."
}

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Space     key.Binding
	Skip      key.Binding
	Overwrite key.Binding
	Rename    key.Binding
	SkipAll   key.Binding
	Diff      key.Binding
	Enter     key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	Space:     key.NewBinding(key.WithKeys(" ", "tab")),
	Skip:      key.NewBinding(key.WithKeys("s")),
	Overwrite: key.NewBinding(key.WithKeys("o")),
	Rename:    key.NewBinding(key.WithKeys("r")),
	SkipAll:   key.NewBinding(key.WithKeys("S")),
	Diff:      key.NewBinding(key.WithKeys("d")),
	Enter:     key.NewBinding(key.WithKeys("enter")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

// RunConflictResolver shows the resolver full screen and returns the
// conflicts with the chosen strategies. ok is false when the user quit.
func RunConflictResolver(conflicts []snapshot.TemplateConflict) ([]snapshot.TemplateConflict, bool, error) {
	model := NewConflictResolver(conflicts)
	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return nil, false, err
	}

	m := finalModel.(ConflictResolverModel)
	return m.Conflicts(), m.Confirmed(), nil
}
