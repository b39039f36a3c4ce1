// Package tui renders build progress as an interactive terminal view.
package tui

import (
	"bytes"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/wasmblock/internal/core/domain"
)

// MaxLogLines bounds the toolchain output kept per block.
const MaxLogLines = 500

// minLogHeight is the smallest log pane shown below the block list.
const minLogHeight = 3

// Row is one block in the list.
type Row struct {
	Name    string
	Status  domain.BlockStatus
	Started time.Time
	Elapsed time.Duration
	Err     error

	lines   []string
	partial []byte
}

// Lines returns the kept output lines, including an unterminated last line.
func (r *Row) Lines() []string {
	if len(r.partial) == 0 {
		return r.lines
	}
	return append(append([]string{}, r.lines...), string(r.partial))
}

func (r *Row) write(data []byte) {
	r.partial = append(r.partial, data...)
	for {
		i := bytes.IndexByte(r.partial, '\n')
		if i < 0 {
			break
		}
		r.lines = append(r.lines, strings.TrimSuffix(string(r.partial[:i]), "\r"))
		r.partial = r.partial[i+1:]
	}
	if extra := len(r.lines) - MaxLogLines; extra > 0 {
		r.lines = append(r.lines[:0], r.lines[extra:]...)
	}
}

// Model is the bubbletea model of the progress view.
type Model struct {
	Rows     []*Row
	Selected int
	// Follow moves the selection to the block that most recently started or failed.
	Follow bool

	byName map[string]*Row
	bySpan map[string]*Row

	spinner spinner.Model
	logs    viewport.Model
	width   int
	height  int
	onQuit  func()
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
//
//nolint:cyclop // one case per message type
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		case "k", "up":
			m.selectRow(m.Selected - 1)
		case "j", "down":
			m.selectRow(m.Selected + 1)
		case "f", "esc":
			m.Follow = true
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MsgPlan:
		m.Rows = make([]*Row, len(msg.Blocks))
		m.byName = make(map[string]*Row, len(msg.Blocks))
		m.bySpan = make(map[string]*Row, len(msg.Blocks))
		for i, name := range msg.Blocks {
			m.Rows[i] = &Row{Name: name, Status: domain.BlockStatusPending}
			m.byName[name] = m.Rows[i]
		}
		m.Selected = 0
		m.resize()

	case MsgBlockStart:
		if row, ok := m.byName[msg.Name]; ok {
			row.Status = domain.BlockStatusRunning
			row.Started = msg.StartTime
			m.bySpan[msg.SpanID] = row
			m.follow(row)
		}

	case MsgBlockLog:
		if row, ok := m.bySpan[msg.SpanID]; ok {
			row.write(msg.Data)
			if row == m.selectedRow() {
				m.refreshLogs()
			}
		}

	case MsgBlockComplete:
		if row, ok := m.bySpan[msg.SpanID]; ok {
			row.Status = domain.CompletionStatus(msg.Cached, msg.Err)
			row.Elapsed = msg.EndTime.Sub(row.Started)
			row.Err = msg.Err
			if msg.Err != nil {
				m.follow(row)
			}
		}
	}

	return m, nil
}

func (m *Model) selectedRow() *Row {
	if m.Selected >= 0 && m.Selected < len(m.Rows) {
		return m.Rows[m.Selected]
	}
	return nil
}

func (m *Model) selectRow(i int) {
	if i < 0 || i >= len(m.Rows) {
		return
	}
	m.Selected = i
	m.Follow = false
	m.refreshLogs()
}

func (m *Model) follow(row *Row) {
	if !m.Follow {
		return
	}
	for i, r := range m.Rows {
		if r == row {
			m.Selected = i
			break
		}
	}
	m.refreshLogs()
}

func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	// Title, blank line, rows, blank line, log title.
	h := m.height - len(m.Rows) - 4
	if h < minLogHeight {
		h = minLogHeight
	}
	m.logs.Width = m.width
	m.logs.Height = h
	m.refreshLogs()
}

func (m *Model) refreshLogs() {
	row := m.selectedRow()
	if row == nil {
		m.logs.SetContent("")
		return
	}
	m.logs.SetContent(strings.Join(row.Lines(), "\n"))
	m.logs.GotoBottom()
}
