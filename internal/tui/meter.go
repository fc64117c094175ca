// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"visualizer/internal/analysis"
	"visualizer/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultBarWidth = 40
	minBarWidth     = 10
	labelWidth      = 7
)

var (
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	peakStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0")).Width(labelWidth).Align(lipgloss.Right)
	onsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))

	zoneColours = map[analysis.Zone]lipgloss.Color{
		analysis.ZoneSafe: lipgloss.Color("#25A065"),
		analysis.ZoneWarn: lipgloss.Color("#E5C07B"),
		analysis.ZoneHot:  lipgloss.Color("#FF5F87"),
	}
)

// Actions are the engine controls reachable from the meter. Nil entries
// disable the matching key.
type Actions struct {
	ToggleRecording func() (bool, error)
	Next            func() (bool, error)
	Previous        func() (bool, error)
	NowPlaying      func() string
}

type meterKeys struct {
	quit, record, next, previous key.Binding
}

var defaultMeterKeys = meterKeys{
	quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
	record:   key.NewBinding(key.WithKeys("r")),
	next:     key.NewBinding(key.WithKeys("n", "right")),
	previous: key.NewBinding(key.WithKeys("p", "left")),
}

type tickMsg time.Time

// MeterModel is a live band meter. It polls a FrameSource at a fixed
// interval and draws one bar per band with its peak marker, a level meter
// and an onset indicator.
type MeterModel struct {
	source   transport.FrameSource
	centers  []float64
	interval time.Duration
	actions  Actions
	keys     meterKeys

	frame     *analysis.Frame
	level     progress.Model
	barWidth  int
	recording bool
	status    string
	err       error
}

// NewMeterModel returns a meter for bands centred on centers, refreshed
// every interval.
func NewMeterModel(source transport.FrameSource, centers []float64, interval time.Duration, actions Actions) MeterModel {
	if interval <= 0 {
		interval = time.Second / 30
	}
	return MeterModel{
		source:   source,
		centers:  centers,
		interval: interval,
		actions:  actions,
		keys:     defaultMeterKeys,
		level:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(defaultBarWidth)),
		barWidth: defaultBarWidth,
	}
}

func (m MeterModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MeterModel) Init() tea.Cmd {
	return m.tick()
}

func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if f := m.source.Latest(); f != nil {
			m.frame = f
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.barWidth = max(msg.Width-labelWidth-4, minBarWidth)
		m.level.Width = m.barWidth

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.record) && m.actions.ToggleRecording != nil:
			m.recording, m.err = m.actions.ToggleRecording()
		case key.Matches(msg, m.keys.next) && m.actions.Next != nil:
			m.move(m.actions.Next, "Last track")
		case key.Matches(msg, m.keys.previous) && m.actions.Previous != nil:
			m.move(m.actions.Previous, "First track")
		}
	}
	return m, nil
}

func (m *MeterModel) move(step func() (bool, error), edge string) {
	moved, err := step()
	m.err = err
	m.status = ""
	if err == nil && !moved {
		m.status = edge
	}
}

func (m MeterModel) View() string {
	var sb strings.Builder

	title := "Live Bands"
	if m.actions.NowPlaying != nil {
		if now := m.actions.NowPlaying(); now != "" {
			title += " - " + now
		}
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	if m.frame == nil {
		sb.WriteString(infoStyle.Render("Waiting for audio..."))
		sb.WriteString("\n")
	} else {
		for i, b := range m.frame.Bands {
			sb.WriteString(labelStyle.Render(bandLabel(m.centers, i)))
			sb.WriteString(" ")
			sb.WriteString(renderBar(b, m.barWidth))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(m.renderMeter())
		sb.WriteString("\n")
	}

	if m.err != nil {
		sb.WriteString(errStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	} else if m.status != "" {
		sb.WriteString(infoStyle.Render(m.status))
		sb.WriteString("\n")
	}

	help := "q: Quit"
	if m.actions.ToggleRecording != nil {
		help = "r: Record • " + help
	}
	if m.actions.Next != nil {
		help = "←/→: Track • " + help
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(help))
	return sb.String()
}

func (m MeterModel) renderMeter() string {
	r := m.frame.Meter
	zone := lipgloss.NewStyle().Foreground(zoneColours[r.Zone]).Render(strings.ToUpper(string(r.Zone)))
	line := labelStyle.Render("level") + " " + m.level.ViewAs(r.Level) + " " + zone
	if m.frame.Onset {
		line += " " + onsetStyle.Render("●")
	}
	if m.recording {
		line += " " + onsetStyle.Render("REC")
	}
	return line
}

// renderBar draws level as a filled bar with the peak as a marker.
func renderBar(b analysis.BandLevel, width int) string {
	filled := int(clamp01(b.Level) * float64(width))
	peak := min(int(clamp01(b.Peak)*float64(width)), width-1)

	cells := []rune(strings.Repeat("█", filled) + strings.Repeat(" ", width-filled))
	out := barStyle.Render(string(cells[:peak]))
	out += peakStyle.Render("|")
	out += barStyle.Render(string(cells[peak+1:]))
	return out
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }

// bandLabel formats the centre frequency of band i.
func bandLabel(centers []float64, i int) string {
	if i >= len(centers) {
		return fmt.Sprintf("#%d", i)
	}
	c := centers[i]
	if c >= 1000 {
		return fmt.Sprintf("%.1fk", c/1000)
	}
	return fmt.Sprintf("%.0f", c)
}

// StartMeterUI runs the live meter until the user quits.
func StartMeterUI(source transport.FrameSource, centers []float64, interval time.Duration, actions Actions) error {
	p := tea.NewProgram(NewMeterModel(source, centers, interval, actions), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
