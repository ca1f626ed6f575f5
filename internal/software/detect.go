package software

import (
	"context"
	"os"
	"strings"

	"github.com/openbootdotdev/devenv/internal/brew"
	"github.com/openbootdotdev/devenv/internal/logging"
)

const DefaultApplicationsDir = "/Applications"

// Detector marks recommendations as installed. Casks are listed once per call.
type Detector struct {
	ApplicationsDir string
	ListCasks       func(ctx context.Context) (map[string]bool, error)
}

func NewDetector() *Detector {
	return &Detector{
		ApplicationsDir: DefaultApplicationsDir,
		ListCasks:       brew.ListCasks,
	}
}

// Detect returns a copy of items with Installed filled in. A brew method
// matches an installed cask; a github method matches an app bundle named
// after the recommendation.
func (d *Detector) Detect(ctx context.Context, items []Recommendation) []Recommendation {
	log := logging.GetLogger("software")

	casks, err := d.ListCasks(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("cask listing unavailable")
		casks = map[string]bool{}
	}

	var apps map[string]bool
	out := make([]Recommendation, len(items))
	for i, item := range items {
		item.Installed = false
		for _, m := range item.InstallMethods {
			switch m.Type {
			case MethodBrew:
				if m.Cask != "" && casks[m.Cask] {
					item.Installed = true
				}
			case MethodGitHub:
				if apps == nil {
					apps = listApps(d.ApplicationsDir)
				}
				if apps[strings.ToLower(item.Name)] {
					item.Installed = true
				}
			}
			if item.Installed {
				break
			}
		}
		out[i] = item
	}
	return out
}

// AppInstalled reports whether dir holds <name>.app, ignoring case.
func AppInstalled(dir, name string) bool {
	return listApps(dir)[strings.ToLower(name)]
}

func listApps(dir string) map[string]bool {
	apps := make(map[string]bool)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apps
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".app") {
			apps[strings.ToLower(strings.TrimSuffix(name, ".app"))] = true
		}
	}
	return apps
}

// Installed returns only the installed recommendations.
func Installed(items []Recommendation) []Recommendation {
	var out []Recommendation
	for _, item := range items {
		if item.Installed {
			out = append(out, item)
		}
	}
	return out
}
