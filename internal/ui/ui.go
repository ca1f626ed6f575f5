package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/openbootdotdev/devenv/internal/system"
)

// ErrNoTerminal is returned by prompts when there is no terminal to ask on.
var ErrNoTerminal = errors.New("no terminal available for prompt (use --yes)")

// Output receives the status helpers below. Tests swap it for a buffer.
var Output io.Writer = os.Stdout

// Interactive reports whether prompts can be shown.
var Interactive = system.HasTTY

var (
	accent  = lipgloss.Color("#22c55e")
	subtle  = lipgloss.Color("#666666")
	warning = lipgloss.Color("#eab308")
	danger  = lipgloss.Color("#ef4444")
	info    = lipgloss.Color("#06b6d4")

	titleStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true).MarginBottom(1)
	greenStyle  = lipgloss.NewStyle().Foreground(accent)
	yellowStyle = lipgloss.NewStyle().Foreground(warning)
	redStyle    = lipgloss.NewStyle().Foreground(danger)
	cyanStyle   = lipgloss.NewStyle().Foreground(info)
	mutedStyle  = lipgloss.NewStyle().Foreground(subtle)
)

func Green(text string) string  { return greenStyle.Render(text) }
func Yellow(text string) string { return yellowStyle.Render(text) }
func Red(text string) string    { return redStyle.Render(text) }
func Cyan(text string) string   { return cyanStyle.Render(text) }

// Check renders a status mark followed by label.
func Check(ok bool, label string) string {
	if ok {
		return Green("✓") + " " + label
	}
	return Red("✗") + " " + label
}

func say(s string) { fmt.Fprintln(Output, s) }

func Header(text string)  { say(titleStyle.Render("=== " + text + " ===")) }
func Success(text string) { say(greenStyle.Render("✓ " + text)) }
func Error(text string)   { say(redStyle.Render("✗ " + text)) }
func Warn(text string)    { say(yellowStyle.Render("⚠ " + text)) }
func Muted(text string)   { say(mutedStyle.Render(text)) }
func Info(text string)    { say("  " + text) }

// Confirm asks a yes/no question. Without a terminal it fails with
// ErrNoTerminal instead of blocking.
func Confirm(question string, defaultVal bool) (bool, error) {
	if !Interactive() {
		return false, ErrNoTerminal
	}
	result := defaultVal
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	return result, err
}

// SelectOption asks for one of options. current, when it is one of the
// options, is preselected.
func SelectOption(title string, options []string, current string) (string, error) {
	if !Interactive() {
		return current, ErrNoTerminal
	}
	selected := current
	err := huh.NewSelect[string]().
		Title(title).
		Options(huh.NewOptions(options...)...).
		Value(&selected).
		Run()
	return selected, err
}
