package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// row is one recording on the board.
type row struct {
	path   string
	stage  Stage
	status Status
	pass   int
	passes int
	err    string
}

// share is the fraction of the recording's work already behind it. Loading
// is cheap; each pass splits the rest between compile and evaluate.
func (r row) share() float64 {
	switch r.status {
	case StatusDone, StatusError:
		return 1
	case StatusQueued:
		return 0
	}
	if r.stage == StageLoad || r.passes == 0 {
		return 0.05
	}
	per := 0.95 / float64(r.passes)
	done := 0.05 + per*float64(r.pass-1)
	if r.stage == StageEval {
		done += per / 2
	}
	return done
}

func (r row) label() string {
	switch r.status {
	case StatusQueued:
		return "queued"
	case StatusDone:
		return "ok"
	case StatusError:
		return "fail"
	}
	verb := map[Stage]string{StageLoad: "loading", StageCompile: "compiling", StageEval: "evaluating"}[r.stage]
	if r.passes > 1 && r.stage != StageLoad {
		return fmt.Sprintf("%s %d/%d", verb, r.pass, r.passes)
	}
	return verb
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	labelStyle = map[Status]lipgloss.Style{
		StatusQueued:  lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		StatusWorking: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		StatusDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
)

const labelWidth = 16

type board struct {
	title  string
	events <-chan Event
	spin   spinner.Model
	bar    progress.Model
	rows   []row
	byPath map[string]int
	width  int
	failed int
	done   bool
}

type eventMsg Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model showing one row per recording
// and an overall bar. The program quits when events is closed.
func NewProgressModel(title string, files []string, events <-chan Event) tea.Model {
	spin := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	spin.Style = labelStyle[StatusWorking]

	b := &board{
		title:  title,
		events: events,
		spin:   spin,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		rows:   make([]row, len(files)),
		byPath: make(map[string]int, len(files)),
		width:  80,
	}
	for i, f := range files {
		b.rows[i] = row{path: f, status: StatusQueued}
		b.byPath[f] = i
	}
	return b
}

func (b *board) Init() tea.Cmd {
	return tea.Batch(b.spin.Tick, b.next())
}

func (b *board) next() tea.Cmd {
	return func() tea.Msg {
		if ev, ok := <-b.events; ok {
			return eventMsg(ev)
		}
		return doneMsg{}
	}
}

func (b *board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return b, tea.Batch(b.apply(Event(msg)), b.next())
	case doneMsg:
		b.done = true
		return b, tea.Quit
	case spinner.TickMsg:
		if b.done {
			return b, nil
		}
		var cmd tea.Cmd
		b.spin, cmd = b.spin.Update(msg)
		return b, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			b.width = msg.Width
			b.bar.Width = max(msg.Width-4, 10)
		}
	case progress.FrameMsg:
		m, cmd := b.bar.Update(msg)
		b.bar = m.(progress.Model)
		return b, cmd
	}
	return b, nil
}

func (b *board) apply(ev Event) tea.Cmd {
	i, ok := b.byPath[ev.File]
	if !ok {
		return nil
	}
	r := &b.rows[i]
	if ev.Status == StatusError && r.status != StatusError {
		b.failed++
	}
	r.status = ev.Status
	if ev.Stage != 0 {
		r.stage = ev.Stage
	}
	if ev.Passes > 0 {
		r.pass, r.passes = ev.Pass, ev.Passes
	}
	if ev.Err != "" {
		r.err = ev.Err
	}

	total := 0.0
	for _, other := range b.rows {
		total += other.share()
	}
	return b.bar.SetPercent(total / float64(len(b.rows)))
}

func (b *board) View() string {
	if len(b.rows) == 0 {
		return ""
	}
	var sb strings.Builder

	finished := 0
	for _, r := range b.rows {
		if r.status == StatusDone || r.status == StatusError {
			finished++
		}
	}
	head := fmt.Sprintf("%s %d/%d", b.title, finished, len(b.rows))
	if b.failed > 0 {
		head += fmt.Sprintf(", %d failed", b.failed)
	}
	if b.done {
		sb.WriteString(titleStyle.Render("done: " + head))
	} else {
		sb.WriteString(b.spin.View() + " " + titleStyle.Render(head))
	}
	sb.WriteString("\n\n")

	nameWidth := max(b.width-labelWidth-4, 20)
	for _, r := range b.rows {
		label := runewidth.FillLeft(r.label(), labelWidth)
		fmt.Fprintf(&sb, "  %s %s\n", labelStyle[r.status].Render(label), truncate(r.path, nameWidth))
		if r.err != "" {
			fmt.Fprintf(&sb, "  %s %s\n", strings.Repeat(" ", labelWidth), dimStyle.Render(truncate(r.err, nameWidth)))
		}
	}
	sb.WriteString("\n")
	if b.done {
		sb.WriteString(b.bar.ViewAs(1))
	} else {
		sb.WriteString(b.bar.View())
	}
	sb.WriteString("\n")
	return sb.String()
}

// truncate shortens s to width display cells with a trailing ellipsis.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width-3, "...")
}
