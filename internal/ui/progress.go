package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/openbootdotdev/devenv/internal/installer"
)

const (
	minBarWidth     = 20
	defaultBarWidth = 40
	statusWidth     = 16
	etaWidth        = 8
	footerLines     = 2
)

var (
	progressBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	progressBgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#333"))
	progressTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	currentStepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#60a5fa"))
	etaStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#666"))
	footerDivStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#333"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StickyProgress pins a progress bar to the bottom two terminal lines while
// install output scrolls above it. It implements installer.Reporter.
type StickyProgress struct {
	out io.Writer

	mu         sync.Mutex
	total      int
	completed  int
	succeeded  int
	failed     int
	skipped    int
	current    string
	barWidth   int
	termWidth  int
	termHeight int
	startTime  time.Time
	spinnerIdx int
	active     bool

	stopCh chan struct{}
	sigCh  chan os.Signal
}

func terminalSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}

// fitBar sizes the bar so the status and ETA columns fit on one line.
func fitBar(termWidth int) int {
	w := termWidth - statusWidth - etaWidth - 4
	return max(minBarWidth, min(w, defaultBarWidth))
}

func NewStickyProgress(total int) *StickyProgress {
	w, h := terminalSize()
	return &StickyProgress{
		out:        os.Stdout,
		total:      total,
		termWidth:  w,
		termHeight: h,
		barWidth:   fitBar(w),
		startTime:  time.Now(),
		stopCh:     make(chan struct{}),
	}
}

// Start reserves the footer and begins animating it. An interrupt restores
// the terminal before exiting.
func (sp *StickyProgress) Start() {
	sp.sigCh = make(chan os.Signal, 1)
	signal.Notify(sp.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sp.sigCh:
			sp.releaseFooter()
			os.Exit(1)
		case <-sp.stopCh:
		}
	}()

	sp.mu.Lock()
	sp.active = true
	fmt.Fprint(sp.out, "\033[?25l"+strings.Repeat("\n", footerLines))
	fmt.Fprintf(sp.out, "\033[1;%dr\033[%dA", sp.termHeight-footerLines, footerLines)
	sp.renderFooter()
	sp.mu.Unlock()

	go func() {
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-sp.stopCh:
				return
			case <-ticker.C:
				sp.mu.Lock()
				sp.spinnerIdx = (sp.spinnerIdx + 1) % len(spinnerFrames)
				sp.renderFooter()
				sp.mu.Unlock()
			}
		}
	}()
}

// renderFooter draws the divider and status line. Callers hold sp.mu.
func (sp *StickyProgress) renderFooter() {
	if !sp.active {
		return
	}
	pct := 0.0
	if sp.total > 0 {
		pct = float64(sp.completed) / float64(sp.total)
	}
	filled := int(pct * float64(sp.barWidth))
	bar := progressBarStyle.Render(strings.Repeat("█", filled)) +
		progressBgStyle.Render(strings.Repeat("░", sp.barWidth-filled))

	spin := ""
	if sp.completed < sp.total {
		spin = spinnerFrames[sp.spinnerIdx] + " "
	}
	eta := sp.estimateRemaining()
	if eta != "" {
		eta = fmt.Sprintf("%-6s", eta)
	}
	current := ""
	if room := sp.termWidth - 16; room > 0 {
		current = truncate(sp.current, room)
	}

	statusLine := fmt.Sprintf(" %s%s%s %s %s",
		spin,
		bar,
		progressTextStyle.Render(fmt.Sprintf(" %d/%d (%3.0f%%)", sp.completed, sp.total, pct*100)),
		etaStyle.Render(eta),
		currentStepStyle.Render(current))

	fmt.Fprintf(sp.out, "\033[s\033[%d;1H\033[K%s\033[%d;1H\033[K%s\033[u",
		sp.termHeight-1, footerDivStyle.Render(strings.Repeat("─", sp.termWidth)),
		sp.termHeight, statusLine)
}

func (sp *StickyProgress) SetCurrent(label string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.current = label
	sp.renderFooter()
}

func (sp *StickyProgress) IncrementWithStatus(ok bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.completed++
	if ok {
		sp.succeeded++
	} else {
		sp.failed++
	}
	sp.renderFooter()
}

func (sp *StickyProgress) StepStarted(_, _ int, step installer.Step, description string) {
	sp.SetCurrent(step.ID() + ": " + description)
}

func (sp *StickyProgress) StepFinished(_, _ int, res installer.StepResult) {
	switch res.Status {
	case installer.StatusInstalled, installer.StatusPlanned:
		sp.IncrementWithStatus(true)
	case installer.StatusFailed:
		sp.IncrementWithStatus(false)
	default:
		sp.mu.Lock()
		sp.completed++
		sp.skipped++
		sp.renderFooter()
		sp.mu.Unlock()
	}
}

// Summary reports the counters in one line.
func (sp *StickyProgress) Summary() string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return fmt.Sprintf("%d installed, %d failed, %d skipped", sp.succeeded, sp.failed, sp.skipped)
}

func (sp *StickyProgress) Finish() {
	close(sp.stopCh)
	sp.releaseFooter()
	fmt.Fprintf(sp.out, "\n  Completed in %s\n", FormatDuration(time.Since(sp.startTime)))
}

// releaseFooter resets the scroll region, clears the footer and shows the
// cursor again.
func (sp *StickyProgress) releaseFooter() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.active = false
	fmt.Fprint(sp.out, "\033[r")
	for i := sp.termHeight - footerLines + 1; i <= sp.termHeight; i++ {
		fmt.Fprintf(sp.out, "\033[%d;1H\033[K", i)
	}
	fmt.Fprintf(sp.out, "\033[%d;1H\033[?25h", sp.termHeight-footerLines)
	if sp.sigCh != nil {
		signal.Stop(sp.sigCh)
	}
}

func (sp *StickyProgress) estimateRemaining() string {
	if sp.completed == 0 {
		return ""
	}
	perStep := time.Since(sp.startTime) / time.Duration(sp.completed)
	eta := perStep * time.Duration(sp.total-sp.completed)

	switch {
	case eta < time.Second:
		return "< 1s"
	case eta < time.Minute:
		return fmt.Sprintf("~%ds", int(eta.Seconds()))
	}
	mins, secs := int(eta.Minutes()), int(eta.Seconds())%60
	if secs > 0 {
		return fmt.Sprintf("~%dm%ds", mins, secs)
	}
	return fmt.Sprintf("~%dm", mins)
}

// ScrollWriter passes complete lines of command output through above the
// footer and redraws it afterwards.
type ScrollWriter struct {
	progress *StickyProgress
	buf      []byte
}

func NewScrollWriter(progress *StickyProgress) *ScrollWriter {
	return &ScrollWriter{progress: progress}
}

func (sw *ScrollWriter) Write(p []byte) (int, error) {
	sp := sw.progress
	sp.mu.Lock()
	defer sp.mu.Unlock()

	sw.buf = append(sw.buf, p...)
	for {
		idx := bytes.IndexByte(sw.buf, '\n')
		if idx < 0 {
			break
		}
		fmt.Fprintf(sp.out, "\033[s%s\n\033[u", sw.buf[:idx])
		sw.buf = sw.buf[idx+1:]
	}
	sp.renderFooter()
	return len(p), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// LineReporter prints one line per step. It is used when stdout is not a
// terminal and for dry runs.
type LineReporter struct {
	W io.Writer
}

func (r LineReporter) StepStarted(index, total int, step installer.Step, description string) {
	fmt.Fprintf(r.W, "[%d/%d] %s: %s\n", index+1, total, step.ID(), description)
}

func (r LineReporter) StepFinished(index, total int, res installer.StepResult) {
	id := res.Step.ID()
	switch res.Status {
	case installer.StatusInstalled:
		fmt.Fprintf(r.W, "  %s %s installed\n", Green("✓"), id)
	case installer.StatusFailed:
		fmt.Fprintf(r.W, "  %s %s: %v\n", Red("✗"), id, res.Err)
	case installer.StatusSkipped:
		fmt.Fprintf(r.W, "[%d/%d] %s: %s\n", index+1, total, id, mutedStyle.Render(res.Description))
	case installer.StatusNotRun:
		fmt.Fprintf(r.W, "[%d/%d] %s: %s\n", index+1, total, id, mutedStyle.Render("not run"))
	}
}
