package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/errgroup"

	"github.com/openbootdotdev/devenv/internal/logging"
)

const defaultDetectConcurrency = 8

// Detector checks the machine for the executables and config files of templates.
type Detector struct {
	Concurrency int
	Timeout     time.Duration
	Now         func() time.Time

	// OnDetected is called after each template finishes, from the worker goroutine.
	OnDetected func(Detection)
}

func NewDetector() *Detector {
	return &Detector{
		Concurrency: defaultDetectConcurrency,
		Timeout:     10 * time.Second,
		Now:         time.Now,
	}
}

// DetectAll runs detection in parallel and returns results in template order.
func (d *Detector) DetectAll(ctx context.Context, templates []Template) ([]Detection, error) {
	results := make([]Detection, len(templates))

	g, gctx := errgroup.WithContext(ctx)
	limit := d.Concurrency
	if limit <= 0 {
		limit = defaultDetectConcurrency
	}
	g.SetLimit(limit)

	for i, t := range templates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.Detect(gctx, t)
			if d.OnDetected != nil {
				d.OnDetected(results[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("detection cancelled: %w", err)
	}
	return results, nil
}

func (d *Detector) Detect(ctx context.Context, t Template) Detection {
	log := logging.GetLogger("detect")
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	det := Detection{
		TemplateID:  t.ID,
		ConfigFiles: make([]ConfigFileStatus, 0, len(t.ConfigFiles)),
	}

	if path, err := exec.LookPath(t.Executable); err == nil {
		det.Installed = true
		det.ExecutablePath = path
		det.Version = d.version(ctx, path, t)
		log.Debug().Str("tool", t.ID).Str("path", path).Str("version", det.Version).Msg("detected")
	}

	for _, cf := range t.ConfigFiles {
		det.ConfigFiles = append(det.ConfigFiles, CheckConfigFile(cf.Path))
	}

	det.DetectedAt = now().UTC().Format(time.RFC3339)
	return det
}

func (d *Detector) version(ctx context.Context, path string, t Template) string {
	if t.VersionCommand == "" {
		return ""
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, t.VersionCommand)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Many tools print their version and exit non-zero; the output still counts.
	_ = cmd.Run()

	return ParseVersion(stdout.String(), stderr.String(), t.VersionParser)
}

// ParseVersion picks the first line of the preferred stream (falling back to
// the other one when empty) and extracts the leading dotted number from it.
func ParseVersion(stdout, stderr string, parser VersionParser) string {
	first, second := stdout, stderr
	if parser == ParserStderr {
		first, second = stderr, stdout
	}
	out := first
	if out == "" {
		out = second
	}
	if out == "" {
		return ""
	}

	line, _, _ := strings.Cut(out, "\n")
	line = strings.TrimRight(line, "\r")

	start := strings.IndexFunc(line, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return ""
	}
	rest := line[start:]
	end := strings.IndexFunc(rest, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return rest[:end]
}

// ExpandPath expands a leading "~/" and any "$HOME" to the home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if expanded, err := homedir.Expand(path); err == nil {
			path = expanded
		}
	}
	if strings.Contains(path, "$HOME") {
		if home, err := homedir.Dir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	return path
}

func CheckConfigFile(path string) ConfigFileStatus {
	status := ConfigFileStatus{Path: path}
	expanded := ExpandPath(path)
	if _, err := os.Stat(expanded); err != nil {
		return status
	}
	status.Exists = true
	if f, err := os.Open(expanded); err == nil {
		status.CanRead = true
		f.Close()
	}
	return status
}

// ReadConfigFile returns the content of a config file after path expansion.
func ReadConfigFile(path string) (string, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}
