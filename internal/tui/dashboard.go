package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/hexwalk/internal/driver"
	"github.com/san-kum/hexwalk/internal/gait"
)

const historyLen = 240

type stepMsg struct {
	snap *driver.Snapshot
	cmd  []float64
}

type doneMsg struct {
	res *driver.Result
	err error
}

type dashboard struct {
	title  string
	total  int
	cancel context.CancelFunc

	snap     *driver.Snapshot
	cmd      []float64
	distance []float64
	torque   []float64

	stopping bool
	res      *driver.Result
	err      error

	width int
}

func newDashboard(title string, total int, cancel context.CancelFunc) dashboard {
	return dashboard{title: title, total: total, cancel: cancel, width: 80}
}

func (m dashboard) Init() tea.Cmd { return nil }

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case stepMsg:
		m.snap, m.cmd = msg.snap, msg.cmd
		m.distance = appendCapped(m.distance, math.Hypot(msg.snap.Tracker.X, msg.snap.Tracker.Y))
		var peak float64
		for _, mo := range msg.snap.Motors {
			peak = math.Max(peak, math.Abs(mo.Torque))
		}
		m.torque = appendCapped(m.torque, peak)
		return m, nil
	case doneMsg:
		m.res, m.err = msg.res, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyLen {
		s = s[len(s)-historyLen:]
	}
	return s
}

func (m dashboard) View() string {
	var b strings.Builder

	status := green.Render("● walking")
	switch {
	case m.res != nil || m.err != nil:
		status = dim.Render("○ done")
	case m.stopping:
		status = yellow.Render("○ stopping")
	}
	b.WriteString(fmt.Sprintf("\n   %s  %s\n", Header.Render(m.title), status))

	step, t := 0, 0.0
	if m.snap != nil {
		step, t = m.snap.Step+1, m.snap.Time
	}
	progress := 0.0
	if m.total > 0 {
		progress = math.Min(1, float64(step)/float64(m.total))
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s\n\n", bar, dim.Render(fmt.Sprintf("step %d/%d  t=%.2fs", step, m.total, t))))

	if m.snap != nil {
		b.WriteString(m.legs())
	}

	if len(m.distance) > 1 {
		graph := asciigraph.Plot(m.distance,
			asciigraph.Height(6),
			asciigraph.Width(min(60, max(20, m.width-20))),
			asciigraph.Caption("distance travelled"),
		)
		b.WriteString("\n" + indent(graph, "   ") + "\n")
	}
	if len(m.torque) > 1 {
		b.WriteString(fmt.Sprintf("\n   %s %s\n", dim.Render("peak torque"), cyan.Render(sparkline(m.torque, 40))))
	}

	if m.err != nil {
		b.WriteString("\n   " + red.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + dim.Render("   q stop") + "\n")
	return b.String()
}

// legs renders one row per leg: measured position against target for
// each joint.
func (m dashboard) legs() string {
	var b strings.Builder
	b.WriteString(dim.Render(fmt.Sprintf("   %-5s %-17s %-17s %-17s", "leg", "shoulder", "knee", "ankle")) + "\n")

	for leg := 0; (leg+1)*gait.JointsPerLeg <= len(m.snap.Motors); leg++ {
		b.WriteString(fmt.Sprintf("   %-5d", leg))
		for j := 0; j < gait.JointsPerLeg; j++ {
			i := gait.ActuatorIndex(leg, j)
			pos := m.snap.Motors[i].Pos
			cell := white.Render(fmt.Sprintf("%+.2f", pos))
			if i < len(m.cmd) {
				cell += dim.Render(fmt.Sprintf(" → %+.2f", m.cmd[i]))
			}
			b.WriteString(" " + cell + "  ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// feed forwards driver steps to the program, at most frameRate times a
// second.
type feed struct {
	p         *tea.Program
	interval  time.Duration
	lastFrame time.Time
}

func (f *feed) OnStep(s *driver.Snapshot, cmd []float64) {
	if time.Since(f.lastFrame) < f.interval {
		return
	}
	f.lastFrame = time.Now()
	f.p.Send(stepMsg{snap: s.Clone(), cmd: append([]float64(nil), cmd...)})
}

// RunFunc starts a walk that reports to obs and returns when it ends.
type RunFunc func(ctx context.Context, obs driver.Observer) (*driver.Result, error)

// Run shows a live dashboard while run executes. Quitting the dashboard
// cancels the walk; Run always waits for run to return.
func Run(ctx context.Context, title string, totalSteps, frameRate int, run RunFunc) (*driver.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if frameRate <= 0 {
		frameRate = 30
	}
	p := tea.NewProgram(newDashboard(title, totalSteps, cancel), tea.WithAltScreen())
	f := &feed{p: p, interval: time.Second / time.Duration(frameRate)}

	var (
		wg  sync.WaitGroup
		res *driver.Result
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err = run(ctx, f)
		p.Send(doneMsg{res: res, err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	wg.Wait()

	if err == nil && uiErr != nil {
		err = uiErr
	}
	return res, err
}
