// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
	"github.com/ccheshirecat/usbvlan/internal/cli/client"
)

const (
	refreshInterval = 5 * time.Second
	maxRows         = 100
	initialEvents   = 20
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	stateStyle = map[provisioner.State]lipgloss.Style{
		provisioner.StateAbsent:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		provisioner.StateWaiting:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		provisioner.StateConfigured: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
)

type statusMsg struct {
	status *client.Status
}

type historyMsg struct {
	events []client.Event
}

type eventMsg struct {
	event client.Event
}

type errMsg struct {
	err error
}

type eventsClosedMsg struct{}

type tickMsg struct{}

// Run launches the Bubble Tea dashboard against api.
func Run(ctx context.Context, api *client.Client) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(ctx, cancel, api)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

type model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	api       *client.Client
	status    *client.Status
	table     table.Model
	rows      []table.Row
	err       error
	eventCh   chan client.Event
	streamEOF bool
}

func newModel(ctx context.Context, cancel context.CancelFunc, api *client.Client) model {
	columns := []table.Column{
		{Title: "TIME", Width: 20},
		{Title: "TYPE", Width: 24},
		{Title: "INTERFACE", Width: 10},
		{Title: "DETAIL", Width: 48},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(12), table.WithFocused(true))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	t.SetStyles(styles)
	return model{
		ctx:     ctx,
		cancel:  cancel,
		api:     api,
		table:   t,
		eventCh: make(chan client.Event, 16),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		fetchStatusCmd(m.api, m.ctx),
		fetchHistoryCmd(m.api, m.ctx),
		watchEventsCmd(m.api, m.ctx, m.eventCh),
		waitEventCmd(m.eventCh),
		tickCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	case statusMsg:
		m.status = msg.status
		m.err = nil
		return m, nil
	case historyMsg:
		// History arrives newest first, matching the table order.
		rows := make([]table.Row, 0, len(msg.events))
		for _, ev := range msg.events {
			rows = append(rows, eventRow(ev))
		}
		m.rows = append(m.rows, rows...)
		m = m.trimRows()
		return m, nil
	case eventMsg:
		m.rows = append([]table.Row{eventRow(msg.event)}, m.rows...)
		m = m.trimRows()
		return m, tea.Batch(fetchStatusCmd(m.api, m.ctx), waitEventCmd(m.eventCh))
	case errMsg:
		m.err = msg.err
		return m, nil
	case eventsClosedMsg:
		m.streamEOF = true
		return m, nil
	case tickMsg:
		return m, tea.Batch(tickCmd(), fetchStatusCmd(m.api, m.ctx))
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) trimRows() model {
	if len(m.rows) > maxRows {
		m.rows = m.rows[:maxRows]
	}
	m.table.SetRows(m.rows)
	return m
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("USB VLAN agent"))
	b.WriteString(labelStyle.Render("  (q to quit)"))
	b.WriteString("\n\n")
	b.WriteString(renderStatus(m.status))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	if m.streamEOF {
		b.WriteString(labelStyle.Render("Event stream closed."))
		b.WriteString("\n")
	}
	return b.String()
}

func renderStatus(status *client.Status) string {
	if status == nil {
		return labelStyle.Render("waiting for status...") + "\n"
	}
	style, ok := stateStyle[status.State]
	if !ok {
		style = lipgloss.NewStyle()
	}
	iface := status.Interface
	if iface == "" {
		iface = "-"
	}
	lines := []string{
		labelStyle.Render("State:     ") + style.Render(string(status.State)),
		labelStyle.Render("Adapter:   ") + status.Target.String(),
		labelStyle.Render("Interface: ") + iface,
		labelStyle.Render("VLAN:      ") + fmt.Sprintf("%s (tag %d, mtu %d)", status.VLAN.Name, status.VLAN.Tag, status.VLAN.MTU),
	}
	return strings.Join(lines, "\n") + "\n"
}

func eventRow(ev client.Event) table.Row {
	detail := ev.Message
	if ev.Command != "" {
		detail = strings.TrimSpace(ev.Command + " " + detail)
	}
	return table.Row{ev.Timestamp.Local().Format(time.DateTime), ev.Type, ev.Interface, detail}
}

func fetchStatusCmd(api *client.Client, parent context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		status, err := api.Status(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return statusMsg{status: status}
	}
}

func fetchHistoryCmd(api *client.Client, parent context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		items, err := api.Events(ctx, initialEvents)
		if err != nil {
			return errMsg{err: err}
		}
		return historyMsg{events: items}
	}
}

func watchEventsCmd(api *client.Client, ctx context.Context, ch chan<- client.Event) tea.Cmd {
	return func() tea.Msg {
		go func() {
			err := api.WatchEvents(ctx, func(ev client.Event) {
				select {
				case ch <- ev:
				case <-ctx.Done():
				}
			})
			if err != nil && ctx.Err() == nil {
				select {
				case ch <- client.Event{Type: "ERROR", Message: err.Error(), Timestamp: time.Now().UTC()}:
				default:
				}
			}
			close(ch)
		}()
		return nil
	}
}

func waitEventCmd(ch <-chan client.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
