package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattjoyce/wordbot/internal/events"
)

const (
	maxEventLog     = 50
	maxInteractions = 200
	healthInterval  = 5 * time.Second
	reconnectDelay  = 3 * time.Second
)

// HealthState tracks service health from /healthz polling.
type HealthState struct {
	Status             string
	UptimeSeconds      int64
	Commands           []string
	Registration       string
	RegistrationErr    string
	RegistrationTrials int
	Connected          bool
	LastCheck          time.Time
}

// Model is the BubbleTea model for 'wordbot monitor'.
type Model struct {
	apiURL string
	apiKey string
	client *http.Client

	width  int
	height int

	health       HealthState
	outcomes     map[string]int
	total        int
	interactions []events.InteractionHandled
	eventLog     []events.Event
	lastEvent    time.Time

	table table.Model
	theme Theme

	hubEvents chan events.Event
	lastID    *atomic.Int64

	lastError string
}

// New creates a monitor for the ops server at apiURL.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 4},
			{Title: "Kind", Width: 20},
			{Title: "Command", Width: 12},
			{Title: "Outcome", Width: 22},
			{Title: "ms", Width: 6},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		client:    &http.Client{},
		outcomes:  make(map[string]int),
		table:     t,
		theme:     NewDefaultTheme(),
		hubEvents: make(chan events.Event, 100),
		lastID:    new(atomic.Int64),
	}
}

// Run starts the monitor and blocks until the user quits.
func Run(apiURL, apiKey string) error {
	_, err := tea.NewProgram(New(apiURL, apiKey), tea.WithAltScreen()).Run()
	return err
}

func (m Model) healthCmd() tea.Cmd {
	hc := &http.Client{Timeout: 2 * time.Second}
	return func() tea.Msg { return fetchHealth(hc, m.apiURL, m.apiKey) }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.client, m.apiURL, m.apiKey, m.lastID, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		m.healthCmd(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(m.width-6, 20))
		m.table.SetHeight(max(m.height/3, 5))

	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		m.applyEvent(events.Event(msg))
		m.health.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Commands = msg.Commands
		m.health.Registration = msg.Registration.Status
		m.health.RegistrationErr = msg.Registration.LastError
		m.health.RegistrationTrials = msg.Registration.Attempts
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		return m, tea.Tick(healthInterval, func(time.Time) tea.Msg { return m.healthCmd()() })

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		if msg.err != nil {
			m.lastError = fmt.Sprintf("event stream: %v, reconnecting...", msg.err)
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.client, m.apiURL, m.apiKey, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(healthInterval, func(time.Time) tea.Msg { return m.healthCmd()() })
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// applyEvent folds one stream event into the model state.
func (m *Model) applyEvent(e events.Event) {
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}
	m.lastEvent = time.Now()

	switch e.Type {
	case events.TypeInteractionHandled:
		var ih events.InteractionHandled
		if err := json.Unmarshal(e.Data, &ih); err != nil {
			return
		}
		m.total++
		m.outcomes[ih.Outcome]++
		m.interactions = append([]events.InteractionHandled{ih}, m.interactions...)
		if len(m.interactions) > maxInteractions {
			m.interactions = m.interactions[:maxInteractions]
		}
		m.table.SetRows(m.rows())

	case events.TypeRegistrationChanged:
		var rc events.RegistrationChanged
		if err := json.Unmarshal(e.Data, &rc); err != nil {
			return
		}
		m.health.Registration = rc.Status
		m.health.RegistrationErr = rc.LastError
		m.health.RegistrationTrials = rc.Attempts
	}
}

func (m *Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.interactions))
	for _, ih := range m.interactions {
		kind := ih.Kind
		if kind == "" {
			kind = "-"
		}
		cmd := ih.Command
		if cmd == "" {
			cmd = "-"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", ih.Status),
			kind,
			cmd,
			ih.Outcome,
			fmt.Sprintf("%d", ih.DurationMS),
		})
	}
	return rows
}
