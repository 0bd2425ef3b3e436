package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/bioreact/internal/bioreactor"
)

// TickMsg advances playback by one frame.
type TickMsg time.Time

const frameRate = 30

var speeds = []int{1, 2, 5, 10, 25}

// Playback is a Bubble Tea model that replays sweep trajectories sample by
// sample. All series are expected to share one time grid.
type Playback struct {
	title    string
	series   []Series
	vars     []bioreactor.Variable
	variable int
	cursor   int
	length   int
	playing  bool
	speed    int
	width    int
	height   int
}

func NewPlayback(title string, series []Series) Playback {
	length := 0
	for _, s := range series {
		length = max(length, s.Trajectory.Len())
	}
	return Playback{
		title:   title,
		series:  series,
		vars:    bioreactor.Variables(),
		length:  length,
		playing: true,
		width:   80,
		height:  24,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Playback) Init() tea.Cmd {
	return tick()
}

func (m Playback) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.playing = !m.playing
			if m.playing && m.cursor >= m.length-1 {
				m.cursor = 0
			}
		case "right", "l":
			m.playing = false
			m.cursor = min(m.cursor+1, max(m.length-1, 0))
		case "left", "h":
			m.playing = false
			m.cursor = max(m.cursor-1, 0)
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.playing = false
			m.cursor = max(m.length-1, 0)
		case "tab":
			m.variable = (m.variable + 1) % len(m.vars)
		case "+", "=":
			m.speed = min(m.speed+1, len(speeds)-1)
		case "-", "_":
			m.speed = max(m.speed-1, 0)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case TickMsg:
		if m.playing {
			m.cursor += speeds[m.speed]
			if m.cursor >= m.length-1 {
				m.cursor = max(m.length-1, 0)
				m.playing = false
			}
		}
		return m, tick()
	}
	return m, nil
}

// Cursor is the index of the sample on screen.
func (m Playback) Cursor() int { return m.cursor }

func (m Playback) Playing() bool { return m.playing }

// Variable is the state variable being plotted.
func (m Playback) Variable() bioreactor.Variable { return m.vars[m.variable] }

func (m Playback) View() string {
	var sb strings.Builder

	v := m.vars[m.variable]
	sb.WriteString(Title.Render(m.title))
	sb.WriteString("  ")
	sb.WriteString(Subtle.Render(fmt.Sprintf("%s (%s)", v.Name, v.Unit)))
	sb.WriteString("\n\n")

	if m.length == 0 {
		sb.WriteString(Subtle.Render("no samples"))
		sb.WriteString("\n")
		return sb.String()
	}

	plotHeight := max(m.height-12-len(m.series), 5)
	sb.WriteString(PlotVariable(v, m.series, PlotOptions{
		Width:  max(m.width-15, 20),
		Height: plotHeight,
		Limit:  m.cursor + 1,
	}))
	sb.WriteString("\n\n")

	var t float64
	for _, s := range m.series {
		if m.cursor < s.Trajectory.Len() {
			t = s.Trajectory.Times[m.cursor]
			break
		}
	}
	status := StatusCancelled.Render("paused")
	if m.playing {
		status = StatusOK.Render("playing")
	}
	end := m.length - 1
	sb.WriteString(fmt.Sprintf("%s %s  %s %s  %s x%d\n",
		MetricLabel.Render("t"), MetricValue.Render(fmt.Sprintf("%.2f %s", t, bioreactor.TimeUnit)),
		ProgressBar(float64(m.cursor)/float64(max(end, 1)), 30),
		status, MetricLabel.Render("speed"), speeds[m.speed]))

	for _, s := range m.series {
		line := fmt.Sprintf("  %-16s", s.Label)
		if m.cursor < s.Trajectory.Len() {
			x := s.Trajectory.States[m.cursor]
			for _, sv := range m.vars {
				line += fmt.Sprintf(" %s=%s", sv.Symbol, MetricValue.Render(fmt.Sprintf("%.4g", x[sv.Index])))
			}
		} else {
			line += StatusFailed.Render(" stopped")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(KeyHint.Render("space play/pause · ←/→ step · tab variable · +/- speed · q quit"))
	return sb.String()
}
