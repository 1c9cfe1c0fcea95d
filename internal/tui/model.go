// Package tui renders live hashing progress: one bar per algorithm per
// input plus an aggregate bar, fed by engine samples sent to the program.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"filehasher/internal/config"
	"filehasher/internal/digest"
	"filehasher/internal/engine"
	"filehasher/internal/report"
)

type Theme struct {
	border lipgloss.Style
	title  lipgloss.Style
	label  lipgloss.Style
	head   lipgloss.Style
	ok     lipgloss.Style
	bad    lipgloss.Style
	footer lipgloss.Style
}

func defaultTheme() Theme {
	b := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return Theme{
		border: b.BorderForeground(lipgloss.Color("63")),
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		label:  lipgloss.NewStyle().Faint(true),
		head:   lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		bad:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		footer: lipgloss.NewStyle().Faint(true),
	}
}

// SampleMsg carries one per-algorithm progress sample for an input.
type SampleMsg struct {
	File   string
	Sample engine.Sample
}

// AggregateMsg carries the combined progress of an input.
type AggregateMsg struct {
	File      string
	Aggregate engine.Aggregate
}

// FileDoneMsg reports that every job for an input has ended.
type FileDoneMsg struct {
	File   string
	Result *report.HashResult
	Err    error
}

// AllDoneMsg ends the program once every input is finished.
type AllDoneMsg struct{}

type tickMsg time.Time

type algRow struct {
	last   engine.Sample
	hex    string
	failed string
}

type fileState struct {
	name   string
	size   int64
	order  []digest.Algorithm
	rows   map[digest.Algorithm]*algRow
	agg    float64
	done   bool
	err    error
	result *report.HashResult
}

type Model struct {
	th       Theme
	w        int
	width    int
	refresh  time.Duration
	files    []*fileState
	byName   map[string]*fileState
	prog     progress.Model
	started  time.Time
	now      time.Time
	cancel   func()
	quitting bool
}

// Input describes one input the program will show.
type Input struct {
	Name       string
	Size       int64
	Algorithms []digest.Algorithm
}

// New builds the model. cancel is invoked when the user quits early.
func New(ui config.UIOptions, inputs []Input, cancel func()) *Model {
	width := ui.ProgressWidth
	if width <= 0 {
		width = 30
	}
	m := &Model{
		th:      defaultTheme(),
		width:   width,
		refresh: ui.Refresh(),
		byName:  map[string]*fileState{},
		prog:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(width), progress.WithoutPercentage()),
		started: time.Now(),
		cancel:  cancel,
	}
	m.now = m.started
	for _, in := range inputs {
		fs := &fileState{name: in.Name, size: in.Size, order: in.Algorithms, rows: map[digest.Algorithm]*algRow{}}
		for _, a := range in.Algorithms {
			fs.rows[a] = &algRow{last: engine.Sample{Algorithm: a, TotalBytes: in.Size}}
		}
		m.files = append(m.files, fs)
		m.byName[in.Name] = fs
	}
	return m
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Init() tea.Cmd { return m.tick() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.w = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		m.now = time.Time(msg)
		if m.quitting {
			return m, nil
		}
		return m, m.tick()
	case SampleMsg:
		fs := m.byName[msg.File]
		if fs == nil {
			return m, nil
		}
		r := fs.rows[msg.Sample.Algorithm]
		if r == nil {
			r = &algRow{}
			fs.rows[msg.Sample.Algorithm] = r
			fs.order = append(fs.order, msg.Sample.Algorithm)
		}
		if msg.Sample.BytesProcessed >= r.last.BytesProcessed {
			r.last = msg.Sample
		}
	case AggregateMsg:
		if fs := m.byName[msg.File]; fs != nil && msg.Aggregate.Percent >= fs.agg {
			fs.agg = msg.Aggregate.Percent
		}
	case FileDoneMsg:
		fs := m.byName[msg.File]
		if fs == nil {
			return m, nil
		}
		fs.done, fs.err, fs.result, fs.agg = true, msg.Err, msg.Result, 100
		if msg.Result != nil {
			for _, e := range msg.Result.Hashes {
				if r := fs.rows[e.Algorithm]; r != nil {
					r.hex = e.Hex
				}
			}
			for k, v := range msg.Result.Failed {
				if a, err := digest.Parse(k); err == nil && fs.rows[a] != nil {
					fs.rows[a].failed = v
				}
			}
		}
	case AllDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) View() string {
	var sb strings.Builder
	done := 0
	for _, f := range m.files {
		if f.done {
			done++
		}
	}
	title := m.th.title.Render("filehasher")
	stats := m.th.label.Render(fmt.Sprintf("  %d/%d inputs • %s", done, len(m.files), report.FormatDuration(m.now.Sub(m.started))))
	sb.WriteString(title + stats + "\n")
	for _, f := range m.files {
		sb.WriteString(m.th.border.Render(m.renderFile(f)))
		sb.WriteString("\n")
	}
	if !m.quitting {
		sb.WriteString(m.th.footer.Render("q cancel"))
	}
	return sb.String()
}

func (m *Model) renderFile(f *fileState) string {
	var sb strings.Builder
	head := fmt.Sprintf("%s  %s", f.name, report.FormatBytes(f.size))
	sb.WriteString(m.th.head.Render(head))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-9s %s %6s\n", "total", m.prog.ViewAs(f.agg/100), report.FormatPercent(f.agg)))
	for _, a := range f.order {
		r := f.rows[a]
		switch {
		case r.hex != "":
			sb.WriteString(fmt.Sprintf("%-9s %s\n", a, m.th.ok.Render(r.hex)))
		case r.failed != "":
			sb.WriteString(fmt.Sprintf("%-9s %s\n", a, m.th.bad.Render("failed: "+r.failed)))
		default:
			s := r.last
			eta := "-"
			if s.ETA > 0 {
				eta = report.FormatDuration(s.ETA)
			}
			sb.WriteString(fmt.Sprintf("%-9s %s %6s  %10s  ETA %s\n", a, m.prog.ViewAs(s.Percent/100), report.FormatPercent(s.Percent), report.FormatSpeed(s.Speed), eta))
		}
	}
	if f.err != nil {
		sb.WriteString(m.th.bad.Render("error: " + f.err.Error()))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
