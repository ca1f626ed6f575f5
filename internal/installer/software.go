package installer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/openbootdotdev/devenv/internal/brew"
	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/software"
)

// ReleaseFinder looks up GitHub release assets.
type ReleaseFinder interface {
	Latest(ctx context.Context, owner, repo, assetPattern string) (*software.Release, error)
}

type SoftwareResult struct {
	Method      string
	Description string
	// Path is set when a file was downloaded.
	Path string
}

// InstallSoftware installs one recommendation using the first method that
// applies: a brew cask when brew is available, then a GitHub release asset,
// then opening the vendor website.
func InstallSoftware(ctx context.Context, rec software.Recommendation, releases ReleaseFinder, opts Options) (*SoftwareResult, error) {
	log := logging.GetLogger("installer")

	if m, ok := rec.Method(software.MethodBrew); ok && brew.IsInstalled() {
		res := &SoftwareResult{Method: software.MethodBrew, Description: "brew install --cask " + m.Cask}
		if opts.DryRun {
			return res, nil
		}
		if err := brew.InstallCask(ctx, m.Cask, opts.Env...); err != nil {
			return nil, err
		}
		markSoftware(opts.StatePath, rec.ID)
		return res, nil
	}

	if m, ok := rec.Method(software.MethodGitHub); ok {
		res := &SoftwareResult{Method: software.MethodGitHub, Description: fmt.Sprintf("download latest %s/%s release", m.Owner, m.Repo)}
		if opts.DryRun {
			return res, nil
		}
		if releases == nil {
			return nil, errors.New("no release client configured")
		}
		rel, err := releases.Latest(ctx, m.Owner, m.Repo, m.AssetPattern)
		if err != nil {
			return nil, err
		}
		asset := rel.Assets[0]
		log.Info().Str("software", rec.ID).Str("asset", asset.Name).Str("tag", rel.TagName).Msg("downloading release asset")
		path, err := downloadAndOpen(ctx, asset.BrowserDownloadURL, opts)
		res.Path = path
		if err != nil {
			return res, err
		}
		markSoftware(opts.StatePath, rec.ID)
		return res, nil
	}

	if m, ok := rec.Method(software.MethodWebsite); ok {
		res := &SoftwareResult{Method: software.MethodWebsite, Description: "open " + m.URL}
		if opts.DryRun {
			return res, nil
		}
		if err := exec.CommandContext(ctx, "open", m.URL).Run(); err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", m.URL, err)
		}
		return res, nil
	}

	if _, ok := rec.Method(software.MethodBrew); ok {
		return nil, brew.ErrNotInstalled
	}
	return nil, fmt.Errorf("no supported install method for %s", rec.ID)
}

func markSoftware(statePath, id string) {
	state, err := LoadState(statePath)
	if err == nil {
		err = state.markSoftware(id)
	}
	if err != nil {
		logging.GetLogger("installer").Warn().Err(err).Msg("failed to record install state")
	}
}
