package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openbootdotdev/devenv/internal/system"
	"github.com/openbootdotdev/devenv/internal/tools"
)

var (
	scanCheckStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22c55e"))

	scanActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06b6d4"))

	scanCountStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

var scanSpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ScanProgress shows a single status line while tools are detected. Done is
// safe to call from the detector's worker goroutines.
type ScanProgress struct {
	out          io.Writer
	total        int
	done         int
	found        int
	last         string
	spinnerIdx   int
	spinnerStop  chan struct{}
	closeOnce    sync.Once
	mu           sync.Mutex
	isTTY        bool
	overallStart time.Time
}

func NewScanProgress(total int) *ScanProgress {
	return newScanProgress(os.Stderr, total, system.HasTTY())
}

func newScanProgress(out io.Writer, total int, isTTY bool) *ScanProgress {
	sp := &ScanProgress{
		out:          out,
		total:        total,
		spinnerStop:  make(chan struct{}),
		isTTY:        isTTY,
		overallStart: time.Now(),
	}

	if sp.isTTY {
		go func() {
			ticker := time.NewTicker(80 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-sp.spinnerStop:
					return
				case <-ticker.C:
					sp.mu.Lock()
					sp.spinnerIdx = (sp.spinnerIdx + 1) % len(scanSpinnerFrames)
					sp.render()
					sp.mu.Unlock()
				}
			}
		}()
	}

	return sp
}

// Done records one finished detection.
func (sp *ScanProgress) Done(det tools.Detection) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.done++
	if det.Installed {
		sp.found++
		sp.last = det.TemplateID
		if det.Version != "" {
			sp.last += " " + det.Version
		}
	}
	sp.render()
}

func (sp *ScanProgress) Finish() {
	sp.closeOnce.Do(func() { close(sp.spinnerStop) })

	sp.mu.Lock()
	defer sp.mu.Unlock()

	elapsed := formatStepDuration(time.Since(sp.overallStart))
	summary := fmt.Sprintf("Detected %d tools", sp.total)
	counts := fmt.Sprintf("%s installed, %s", formatFoundCount(sp.found), elapsed)
	if sp.isTTY {
		fmt.Fprintf(sp.out, "\r\033[K  %s %s\n", scanCheckStyle.Render("✓ "+summary), scanCountStyle.Render(counts))
		return
	}
	fmt.Fprintf(sp.out, "  ✓ %s (%s)\n", summary, counts)
}

func (sp *ScanProgress) render() {
	if !sp.isTTY {
		return
	}
	line := fmt.Sprintf("%s Detecting tools... [%d/%d]", scanSpinnerFrames[sp.spinnerIdx], sp.done, sp.total)
	fmt.Fprintf(sp.out, "\r\033[K  %s %s", scanActiveStyle.Render(line), scanCountStyle.Render(sp.last))
}

func formatStepDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatFoundCount(count int) string {
	if count == 1 {
		return "1 tool"
	}
	return fmt.Sprintf("%d tools", count)
}
