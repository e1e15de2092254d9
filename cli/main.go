package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)
)

// Model defines the application state
type Model struct {
	mainMenu    list.Model
	drinkList   list.Model
	suggestions list.Model
	boardView   table.Model
	spinner     spinner.Model
	client      *ApiClient
	status      *Status
	run         *Run
	pouring     string
	currentView string
	error       string
}

// item represents a list item
type item struct {
	title, desc string
}

func (i item) FilterValue() string { return i.title }
func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }

// drinkItem is a makeable drink in the menu list
type drinkItem struct {
	id    string
	title string
	desc  string
}

func (i drinkItem) Title() string       { return i.title }
func (i drinkItem) Description() string { return i.desc }
func (i drinkItem) FilterValue() string { return i.title }

func initialModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	items := []list.Item{
		item{title: "Menu", desc: "Drinks the loaded bottles can make"},
		item{title: "Suggestions", desc: "Drinks one bottle away"},
		item{title: "Rig Status", desc: "Turret position, safe mode and status board"},
		item{title: "Exit", desc: "Exit the application"},
	}
	mainMenu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "Barrobot"

	drinkList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	drinkList.Title = "Menu"

	suggestions := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	suggestions.Title = "One Bottle Away"

	boardTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Fact", Width: 28},
			{Title: "Value", Width: 32},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	return Model{
		mainMenu:    mainMenu,
		drinkList:   drinkList,
		suggestions: suggestions,
		boardView:   boardTable,
		spinner:     s,
		client:      NewApiClient(),
		currentView: "main",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.EnterAltScreen, fetchStatus(m.client))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.mainMenu.SetSize(msg.Width-h, msg.Height-v)
		m.drinkList.SetSize(msg.Width-h, msg.Height-v-2)
		m.suggestions.SetSize(msg.Width-h, msg.Height-v-2)
		return m, nil
	case tea.KeyMsg:
		// a pour cannot be interrupted from here
		if m.currentView == "pouring" {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			switch m.currentView {
			case "main":
				if selected, ok := m.mainMenu.SelectedItem().(item); ok {
					m.error = ""
					switch selected.title {
					case "Exit":
						return m, tea.Quit
					case "Menu":
						m.currentView = "menu"
						return m, tea.Batch(fetchMenu(m.client), fetchStatus(m.client))
					case "Suggestions":
						m.currentView = "suggestions"
						return m, fetchSuggestions(m.client)
					case "Rig Status":
						m.currentView = "status"
						return m, fetchStatus(m.client)
					}
				}
			case "menu":
				if selected, ok := m.drinkList.SelectedItem().(drinkItem); ok {
					m.currentView = "pouring"
					m.pouring = selected.title
					m.run = nil
					m.error = ""
					return m, tea.Batch(m.spinner.Tick, makeDrink(m.client, selected.id))
				}
			case "run":
				m.currentView = "menu"
				return m, tea.Batch(fetchMenu(m.client), fetchStatus(m.client))
			}
		case "r":
			if m.currentView == "status" {
				return m, fetchStatus(m.client)
			}
		case "esc":
			if m.currentView == "run" {
				m.currentView = "menu"
			} else if m.currentView != "main" {
				m.currentView = "main"
			}
			return m, nil
		}
	case menuMsg:
		m.drinkList.SetItems(convertRecipesToItems(msg.recipes))
		return m, nil
	case suggestionsMsg:
		m.suggestions.SetItems(convertSuggestionsToItems(msg.suggestions))
		return m, nil
	case statusMsg:
		m.status = msg.status
		m.boardView.SetRows(boardRows(msg.status.Board))
		return m, nil
	case runMsg:
		m.run = msg.run
		m.currentView = "run"
		if msg.err != "" {
			m.error = msg.err
		}
		return m, fetchStatus(m.client)
	case errorMsg:
		m.error = msg.err
		if m.currentView == "pouring" {
			m.currentView = "menu"
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.currentView {
	case "main":
		m.mainMenu, cmd = m.mainMenu.Update(msg)
	case "menu":
		m.drinkList, cmd = m.drinkList.Update(msg)
	case "suggestions":
		m.suggestions, cmd = m.suggestions.Update(msg)
	case "status":
		m.boardView, cmd = m.boardView.Update(msg)
	}

	return m, cmd
}

func (m Model) View() string {
	switch m.currentView {
	case "main":
		return docStyle.Render(m.mainMenu.View())
	case "menu":
		help := "\nPress 'enter' to pour the selected drink, 'esc' to go back\n"
		if m.error != "" {
			help += errorStyle.Render(m.error) + "\n"
		}
		return docStyle.Render(modeBanner(m.status) + "\n" + m.drinkList.View() + help)
	case "suggestions":
		return docStyle.Render(m.suggestions.View() + "\nPress 'esc' to go back\n")
	case "pouring":
		return docStyle.Render(titleStyle.Render("Pouring "+m.pouring) + "\n\n" +
			m.spinner.View() + " Working, keep your glass under the spout...")
	case "run":
		return docStyle.Render(runView(m.run, m.error))
	case "status":
		return docStyle.Render(statusView(m.status) + "\n" + m.boardView.View() +
			"\n\nPress 'r' to refresh, 'esc' to go back")
	default:
		return "Loading..."
	}
}

// Custom message types for the tea.Model
type menuMsg struct {
	recipes []Recipe
}

type suggestionsMsg struct {
	suggestions []Suggestion
}

type statusMsg struct {
	status *Status
}

type runMsg struct {
	run *Run
	err string
}

type errorMsg struct {
	err string
}

func fetchMenu(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		recipes, err := client.GetMenu()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching menu: %v", err)}
		}
		return menuMsg{recipes: recipes}
	}
}

func fetchSuggestions(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		out, err := client.GetSuggestions()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching suggestions: %v", err)}
		}
		return suggestionsMsg{suggestions: out}
	}
}

func fetchStatus(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		st, err := client.GetStatus()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching status: %v", err)}
		}
		return statusMsg{status: st}
	}
}

// makeDrink pours the drink and reports the finished run
func makeDrink(client *ApiClient, id string) tea.Cmd {
	return func() tea.Msg {
		run, err := client.MakeDrink(id)
		if run == nil {
			return errorMsg{err: fmt.Sprintf("Error making drink: %v", err)}
		}
		msg := runMsg{run: run}
		if err != nil {
			msg.err = err.Error()
		}
		return msg
	}
}

func convertRecipesToItems(recipes []Recipe) []list.Item {
	items := make([]list.Item, len(recipes))
	for i, r := range recipes {
		names := make([]string, len(r.Ingredients))
		for j, ing := range r.Ingredients {
			names[j] = ing.Item
		}
		items[i] = drinkItem{
			id:    r.ID,
			title: r.Name,
			desc:  strings.Join(names, ", "),
		}
	}
	return items
}

func convertSuggestionsToItems(suggestions []Suggestion) []list.Item {
	items := make([]list.Item, len(suggestions))
	for i, s := range suggestions {
		items[i] = item{
			title: s.Recipe.Name,
			desc:  "needs " + strings.Join(s.Missing, ", "),
		}
	}
	return items
}

func boardRows(board map[string]interface{}) []table.Row {
	keys := make([]string, 0, len(board))
	for k := range board {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]table.Row, len(keys))
	for i, k := range keys {
		rows[i] = table.Row{k, fmt.Sprint(board[k])}
	}
	return rows
}

func modeBanner(st *Status) string {
	switch {
	case st == nil:
		return infoStyle.Render("rig status unknown")
	case st.Turret.Faulted:
		return errorStyle.Render("TURRET FAULT: reset the turret before pouring")
	case st.Turret.SafeMode:
		return infoStyle.Render("SAFE MODE: hardware actions are simulated")
	default:
		return successStyle.Render("LIVE: the turret will move")
	}
}

func statusView(st *Status) string {
	view := titleStyle.Render("Rig Status") + "\n\n"
	if st == nil {
		return view + "No status yet\n"
	}
	view += modeBanner(st) + "\n\n"
	view += fmt.Sprintf("Turret slot: %d\n", st.Turret.Slot+1)
	view += fmt.Sprintf("GPIO ready: %t\n", st.Turret.GPIOReady)
	view += fmt.Sprintf("Busy: %t\n", st.Busy)
	return view
}

func runView(run *Run, errText string) string {
	if run == nil {
		return errorStyle.Render(errText)
	}
	view := titleStyle.Render(run.Recipe) + "\n\n"
	for _, ev := range run.Events {
		line := ev.Message
		if ev.Slot != nil {
			line += fmt.Sprintf(" [slot %d]", *ev.Slot+1)
		}
		view += "• " + line + "\n"
	}
	view += "\n"

	switch run.Status {
	case "ready":
		view += successStyle.Render("Ready") + "\n"
	case "missing":
		view += infoStyle.Render("Missing ingredient") + "\n"
	default:
		view += errorStyle.Render(strings.ToUpper(run.Status)) + "\n"
	}
	if errText != "" && run.Status != "ready" {
		view += errorStyle.Render(errText) + "\n"
	}
	if run.SafeMode {
		view += "(simulated, safe mode)\n"
	}
	view += "\nPress 'enter' to return to the menu"
	return view
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}
