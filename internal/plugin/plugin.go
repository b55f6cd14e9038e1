package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-mngr/mngr/internal/artifact"
	"github.com/go-mngr/mngr/internal/metrics"
	"github.com/go-mngr/mngr/internal/release"
	"github.com/go-mngr/mngr/pkg/registry"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotRegistered     = errors.New("plugin is not registered")
	ErrAlreadyRegistered = errors.New("plugin is already registered")
)

type ReleaseSource interface {
	ListReleases(ctx context.Context, repo *release.Repository) (*release.Listing, error)
}

type ArtifactStore interface {
	Delete(fileName string) error
	Install(ctx context.Context, downloadURL, fileName string, resolve artifact.ConflictResolver) (*artifact.InstallResult, error)
}

type RegisterResult struct {
	Record *registry.PluginRecord
	Quota  release.Quota
}

type SelectorKind int

const (
	ByName SelectorKind = iota
	ByFileName
)

type Selector struct {
	Kind  SelectorKind
	Value string
}

type UnregisterResult struct {
	Record *registry.PluginRecord
	// FileErr is the outcome of deleting the artifact file. The record stays
	// removed even if it is set.
	FileErr error
}

type Manager struct {
	log      *logrus.Logger
	registry *registry.Registry
	source   ReleaseSource
	files    ArtifactStore
	webURL   string
}

func NewManager(log *logrus.Logger, reg *registry.Registry, source ReleaseSource, files ArtifactStore, webURL string) *Manager {
	if webURL == "" {
		webURL = release.DefaultWebURL
	}
	return &Manager{
		log:      log,
		registry: reg,
		source:   source,
		files:    files,
		webURL:   webURL,
	}
}

func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

func (m *Manager) fetchReleases(ctx context.Context, repositoryURL string) (*release.Listing, error) {
	repo, err := release.ParseRepositoryURL(repositoryURL, m.webURL)
	if err != nil {
		return nil, err
	}
	m.log.WithField("repository", repo.FullName()).Debug("fetching releases")
	return m.source.ListReleases(ctx, repo)
}

// Register adds the newest release of the repository at url, pre-releases
// included, to the registry. Only metadata is stored; the artifact is
// installed by a later update.
func (m *Manager) Register(ctx context.Context, url string) (*RegisterResult, error) {
	res, err := m.register(ctx, url)
	if err != nil {
		metrics.Record(ctx, metrics.OpRegister, metrics.OutcomeFailure)
		return res, err
	}
	metrics.Record(ctx, metrics.OpRegister, metrics.OutcomeSuccess)
	return res, nil
}

func (m *Manager) register(ctx context.Context, url string) (*RegisterResult, error) {
	listing, err := m.fetchReleases(ctx, url)
	if err != nil {
		return nil, err
	}
	res := &RegisterResult{Quota: listing.Quota}
	latest := release.Latest(listing.Releases)
	if latest == nil {
		return res, release.ErrNoRelease
	}
	if _, ok := m.registry.Get(latest.Name); ok {
		return res, fmt.Errorf("%s: %w", latest.Name, ErrAlreadyRegistered)
	}
	res.Record = latest.ToPluginRecord()
	m.registry.Insert(res.Record)
	m.log.WithFields(logrus.Fields{
		"plugin":  res.Record.Name,
		"version": res.Record.Version,
		"file":    res.Record.FileName,
	}).Info("plugin registered")
	return res, nil
}

// Unregister removes the record matched by sel and then deletes its artifact
// file. A failed file deletion is returned in the result, not as an error.
func (m *Manager) Unregister(ctx context.Context, sel Selector) (*UnregisterResult, error) {
	var (
		p  *registry.PluginRecord
		ok bool
	)
	switch sel.Kind {
	case ByFileName:
		if cnt := m.registry.CountByFileName(sel.Value); cnt > 1 {
			m.log.WithField("file", sel.Value).Warnf("%d plugins share this file, only the first one is removed", cnt)
		}
		p, ok = m.registry.RemoveByFileName(sel.Value)
	default:
		p, ok = m.registry.Remove(sel.Value)
	}
	if !ok {
		metrics.Record(ctx, metrics.OpUnregister, metrics.OutcomeFailure)
		return nil, fmt.Errorf("%s: %w", sel.Value, ErrNotRegistered)
	}
	res := &UnregisterResult{Record: p}
	if err := m.files.Delete(p.FileName); err != nil {
		m.log.WithFields(logrus.Fields{"plugin": p.Name, "file": p.FileName}).Warnf("failed to delete artifact: %v", err)
		res.FileErr = err
	}
	metrics.Record(ctx, metrics.OpUnregister, metrics.OutcomeSuccess)
	return res, nil
}

// UpdatePolicy runs Update for the plugins selected by policy.
func (m *Manager) UpdatePolicy(ctx context.Context, policy Policy, names []string, resolve artifact.ConflictResolver) *Report {
	targets, includePreRelease := Targets(m.registry, policy, names)
	report := m.Update(ctx, targets, includePreRelease, resolve)
	report.Policy = policy
	return report
}

// Update brings every named plugin to its latest release. Plugins are
// processed one after another and a failure never stops the batch.
func (m *Manager) Update(ctx context.Context, names []string, includePreRelease bool, resolve artifact.ConflictResolver) *Report {
	report := &Report{Outcomes: make([]*Outcome, 0, len(names))}
	for _, name := range names {
		o := m.updatePlugin(ctx, name, includePreRelease, resolve)
		report.Outcomes = append(report.Outcomes, o)
		metrics.Record(ctx, metrics.OpUpdate, statusOutcome(o.Status))
	}
	return report
}

func statusOutcome(s Status) string {
	switch s {
	case StatusUpdated:
		return metrics.OutcomeSuccess
	case StatusCurrent:
		return metrics.OutcomeCurrent
	case StatusFailed:
		return metrics.OutcomeFailure
	default:
		return metrics.OutcomeSkipped
	}
}

func (m *Manager) updatePlugin(ctx context.Context, name string, includePreRelease bool, resolve artifact.ConflictResolver) *Outcome {
	o := &Outcome{Name: name}
	p, ok := m.registry.Get(name)
	if !ok {
		o.Status = StatusFailed
		o.Err = ErrNotRegistered
		return o
	}
	o.Previous = p
	o.Current = p
	log := m.log.WithFields(logrus.Fields{"plugin": name, "version": p.Version})

	listing, err := m.fetchReleases(ctx, p.RepositoryURL)
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
		return o
	}
	o.Quota = listing.Quota
	candidate := release.Select(listing.Releases, includePreRelease)
	if candidate == nil {
		log.Debug("no applicable release")
		o.Status = StatusNoCandidate
		return o
	}
	if candidate.Version == p.Version {
		o.Status = StatusCurrent
		return o
	}
	o.Change = classifyChange(p.Version, candidate.Version)

	downloadURL, err := candidate.DownloadURL()
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
		return o
	}
	installResolve := resolve
	if candidate.FileName == p.FileName {
		// the existing file belongs to this plugin and is replaced without asking
		installResolve = func(string) (bool, error) { return true, nil }
	}
	res, err := m.files.Install(ctx, downloadURL, candidate.FileName, installResolve)
	if errors.Is(err, artifact.ErrAbandoned) {
		log.WithField("file", candidate.FileName).Info("update abandoned")
		o.Status = StatusSkipped
		o.Err = err
		return o
	}
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
		return o
	}
	metrics.RecordDownload(ctx, res.Size)

	if candidate.FileName != p.FileName {
		if err := m.files.Delete(p.FileName); err != nil {
			log.WithField("file", p.FileName).Warnf("failed to delete previous artifact: %v", err)
		}
	}
	o.Current = candidate.ToPluginRecord()
	o.Current.Name = name
	m.registry.Insert(o.Current)
	o.Status = StatusUpdated
	log.WithFields(logrus.Fields{
		"new_version": candidate.Version,
		"file":        candidate.FileName,
		"sha256":      res.Checksum,
	}).Info("plugin updated")
	return o
}
