// Package release automates keeping a babel-standalone style package in step
// with upstream Babel: bump dev dependencies to their latest npm versions,
// adopt the newest Babel version as the package version, then install, build,
// test, commit and push.
package release

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sw33tLie/jsenv/pkg/logger"
	"github.com/sw33tLie/jsenv/pkg/storage"
)

// Defaults for Releaser fields left empty.
const (
	DefaultAuthor = "DanBuild <build@dan.cx>"
	DefaultRemote = "origin"
	DefaultBranch = "master"
	ManifestFile  = "package.json"
)

// Default command lines run inside the package root.
var (
	DefaultInstallCmd = []string{"npm", "install"}
	DefaultBuildCmd   = []string{filepath.Join("node_modules", ".bin", "gulp")}
	DefaultTestCmd    = []string{filepath.Join("node_modules", ".bin", "mocha")}
)

// Locker serializes release runs.
type Locker interface {
	Lock() error
	Unlock() error
}

// History records release runs and version checks.
type History interface {
	RecordCheck(ctx context.Context, c storage.Check) (int64, error)
	RecordRelease(ctx context.Context, r storage.Release) (int64, error)
}

// Result describes one release run.
type Result struct {
	CurrentVersion string
	LatestVersion  string
	// Upgraded lists dev dependencies whose range changed, as name -> new range.
	Upgraded map[string]string
	Status   string
}

// Released reports whether a new version was committed and pushed.
func (r *Result) Released() bool { return r.Status == storage.StatusReleased }

// Releaser runs the release steps against a package checkout at Root.
type Releaser struct {
	Root    string
	Checker *Checker
	Runner  CommandRunner
	Lock    Locker
	History History
	Log     logger.Logger

	Author     string
	Remote     string
	Branch     string
	InstallCmd []string
	BuildCmd   []string
	TestCmd    []string
	// SkipPush commits locally only.
	SkipPush bool
}

func (r *Releaser) manifestPath() string { return filepath.Join(r.Root, ManifestFile) }

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultCmd(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// Run performs a full release. When the package version already matches the
// newest Babel dependency, Run stops after the dependency check and returns a
// Result with status up-to-date.
func (r *Releaser) Run(ctx context.Context) (res *Result, err error) {
	log := logger.OrNop(r.Log)
	if r.Lock != nil {
		if err := r.Lock.Lock(); err != nil {
			return nil, err
		}
		defer func() {
			if uerr := r.Lock.Unlock(); uerr != nil {
				log.Warnf("%v", uerr)
			}
		}()
	}

	started := time.Now()
	res = &Result{Upgraded: map[string]string{}}
	defer func() {
		if r.History == nil {
			return
		}
		rec := storage.Release{StartedAt: started, FinishedAt: time.Now(), Version: res.LatestVersion, Status: res.Status}
		if err != nil {
			rec.Status = storage.StatusFailed
			rec.Message = err.Error()
		} else if res.Status == storage.StatusUpToDate {
			rec.Message = fmt.Sprintf("Current version (%s) is the latest", res.CurrentVersion)
		}
		if _, herr := r.History.RecordRelease(context.WithoutCancel(ctx), rec); herr != nil {
			log.Warnf("Could not record release run: %v", herr)
		}
	}()

	log.Infof("Checking for updates...")
	m, err := LoadManifest(r.manifestPath())
	if err != nil {
		return res, err
	}
	if err = r.upgrade(ctx, m, res); err != nil {
		return res, err
	}
	if err = m.Save(r.manifestPath()); err != nil {
		return res, err
	}

	res.CurrentVersion = m.Version()
	res.LatestVersion = r.checker().LatestInManifest(m)
	if res.LatestVersion == "" {
		return res, fmt.Errorf("no Babel dev dependencies with a valid version in %s", r.manifestPath())
	}
	if r.History != nil {
		if _, herr := r.History.RecordCheck(ctx, storage.Check{Package: m.Name(), CurrentVersion: res.CurrentVersion, LatestVersion: res.LatestVersion}); herr != nil {
			log.Warnf("Could not record version check: %v", herr)
		}
	}
	if CompareVersions(res.CurrentVersion, res.LatestVersion) >= 0 {
		log.Infof("Current version (%s) is the latest", res.CurrentVersion)
		res.Status = storage.StatusUpToDate
		return res, nil
	}
	log.Infof("Current version is %s, latest Babel version is %s", res.CurrentVersion, res.LatestVersion)

	log.Infof("Installing packages...")
	if err = r.run(ctx, orDefaultCmd(r.InstallCmd, DefaultInstallCmd)); err != nil {
		return res, err
	}
	log.Infof("Updating version in %s", ManifestFile)
	if err = m.SetVersion(res.LatestVersion); err != nil {
		return res, err
	}
	if err = m.Save(r.manifestPath()); err != nil {
		return res, err
	}
	log.Infof("Building")
	if err = r.run(ctx, orDefaultCmd(r.BuildCmd, DefaultBuildCmd)); err != nil {
		return res, err
	}
	log.Infof("Running tests")
	if err = r.run(ctx, orDefaultCmd(r.TestCmd, DefaultTestCmd)); err != nil {
		return res, err
	}

	log.Infof("Committing and pushing changes")
	if err = r.Runner.Run(ctx, r.Root, "git", "commit",
		"-m", "Upgrade to Babel "+res.LatestVersion,
		"--author", orDefault(r.Author, DefaultAuthor),
		"--", ManifestFile); err != nil {
		return res, err
	}
	if !r.SkipPush {
		if err = r.Runner.Run(ctx, r.Root, "git", "push", orDefault(r.Remote, DefaultRemote), orDefault(r.Branch, DefaultBranch)); err != nil {
			return res, err
		}
	}
	res.Status = storage.StatusReleased
	return res, nil
}

func (r *Releaser) checker() *Checker {
	if r.Checker == nil {
		r.Checker = NewChecker(r.Log)
	}
	return r.Checker
}

func (r *Releaser) run(ctx context.Context, cmd []string) error {
	return r.Runner.Run(ctx, r.Root, cmd[0], cmd[1:]...)
}

// upgrade bumps every dev dependency to "^latest" when npm has a newer
// version than the range allows as its floor.
func (r *Releaser) upgrade(ctx context.Context, m *Manifest, res *Result) error {
	log := logger.OrNop(r.Log)
	deps := m.DevDependencies()
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	npm := r.checker().NPM
	if npm == nil {
		npm = NewNPMClient()
	}
	latest, errList := npm.LatestAll(ctx, names)
	if len(errList) > 0 {
		return fmt.Errorf("checking %d dev dependencies failed, first error: %w", len(errList), errList[0])
	}
	for _, d := range deps {
		v, ok := latest[d.Name]
		if !ok || !ValidVersion(d.Range) || CompareVersions(v, d.Range) <= 0 {
			continue
		}
		next := "^" + v
		if err := m.SetDevDependency(d.Name, next); err != nil {
			return err
		}
		res.Upgraded[d.Name] = next
		log.Infof("%s %s -> %s", d.Name, d.Range, next)
	}
	return nil
}
