// Package board provides device.Board implementations: a styled console
// board for simulators and development hosts, and a no-op board for
// headless deployments.
package board

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/voxling/voxling/pkg/device"
)

// Theme defines the console board colors.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Warn    lipgloss.Color
}

// DefaultTheme matches the project's terminal tooling.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#f0883e"),
}

var emotionIcons = map[string]string{
	"neutral":  "🙂",
	"happy":    "😊",
	"laughing": "😆",
	"sad":      "😢",
	"angry":    "😠",
	"thinking": "🤔",
	"sleepy":   "😴",
}

var stateIcons = map[device.State]string{
	device.StateIdle:       "○",
	device.StateConnecting: "◌",
	device.StateListening:  "●",
	device.StateSpeaking:   "◍",
	device.StateUpgrading:  "⇣",
	device.StateActivating: "⚿",
	device.StateFatalError: "✗",
}

// Console renders device status and the conversation to a terminal. Every
// update appends a styled line, so the history doubles as a session log.
type Console struct {
	out io.Writer

	labelStyle lipgloss.Style
	dimStyle   lipgloss.Style
	warnStyle  lipgloss.Style

	mu      sync.Mutex
	status  string
	emotion string
	state   device.State
}

var _ device.Board = (*Console)(nil)

// NewConsole creates a console board writing to out. A nil out means
// stdout.
func NewConsole(out io.Writer, theme Theme) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		out:        out,
		labelStyle: lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		dimStyle:   lipgloss.NewStyle().Foreground(theme.Dim),
		warnStyle:  lipgloss.NewStyle().Foreground(theme.Warn),
		emotion:    "neutral",
	}
}

// SetStatus implements device.Board.
func (c *Console) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status == c.status {
		return
	}
	c.status = status
	c.printLocked(c.dimStyle.Render(c.headerLocked()))
}

// SetEmotion implements device.Board.
func (c *Console) SetEmotion(emotion string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emotion = emotion
}

// SetChatMessage implements device.Board.
func (c *Console) SetChatMessage(role, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	label := c.labelStyle.Render(role + ">")
	if role == "system" {
		label = c.warnStyle.Render(role + ">")
	}
	icon := emotionIcons[c.emotion]
	c.printLocked(fmt.Sprintf("%s %s %s", label, text, icon))
}

// SetStateIcon implements device.Board.
func (c *Console) SetStateIcon(state device.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.printLocked(c.dimStyle.Render(c.headerLocked()))
}

// SetPowerSaveMode implements device.Board.
func (c *Console) SetPowerSaveMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.printLocked(c.dimStyle.Render("· power save"))
	}
}

func (c *Console) headerLocked() string {
	icon := stateIcons[c.state]
	if icon == "" {
		icon = "·"
	}
	return fmt.Sprintf("%s %s [%s]", icon, c.status, c.state)
}

func (c *Console) printLocked(line string) {
	fmt.Fprintln(c.out, line)
}

// Nop is a device.Board that does nothing.
type Nop struct{}

var _ device.Board = Nop{}

func (Nop) SetStatus(string)           {}
func (Nop) SetEmotion(string)          {}
func (Nop) SetChatMessage(_, _ string) {}
func (Nop) SetStateIcon(device.State)  {}
func (Nop) SetPowerSaveMode(bool)      {}
