package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/go-mngr/mngr/internal/release"
	"github.com/go-mngr/mngr/pkg/registry"
	"github.com/hashicorp/go-multierror"
)

type Status int

const (
	StatusUpdated Status = iota
	StatusCurrent
	StatusNoCandidate
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUpdated:
		return "updated"
	case StatusCurrent:
		return "already current"
	case StatusNoCandidate:
		return "no applicable release"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Change int

const (
	ChangeNone Change = iota
	ChangeUpgrade
	ChangeDowngrade
	// ChangeUnknown is used when one of the versions is not a semantic version.
	ChangeUnknown
)

func (c Change) String() string {
	switch c {
	case ChangeUpgrade:
		return "upgrade"
	case ChangeDowngrade:
		return "downgrade"
	case ChangeUnknown:
		return "change"
	default:
		return "none"
	}
}

func classifyChange(from, to string) Change {
	if from == to {
		return ChangeNone
	}
	fromVersion, err := semver.NewVersion(from)
	if err != nil {
		return ChangeUnknown
	}
	toVersion, err := semver.NewVersion(to)
	if err != nil {
		return ChangeUnknown
	}
	switch toVersion.Compare(fromVersion) {
	case 1:
		return ChangeUpgrade
	case -1:
		return ChangeDowngrade
	default:
		return ChangeUnknown
	}
}

// Outcome is the result of updating a single plugin.
type Outcome struct {
	Name     string
	Status   Status
	Previous *registry.PluginRecord
	// Current is the record stored after the update. It equals Previous unless
	// Status is StatusUpdated.
	Current *registry.PluginRecord
	Change  Change
	Quota   release.Quota
	Err     error
}

type Report struct {
	Policy   Policy
	Outcomes []*Outcome
}

func (r *Report) Count(status Status) int {
	cnt := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			cnt++
		}
	}
	return cnt
}

// Changed reports whether at least one record was replaced.
func (r *Report) Changed() bool {
	return r.Count(StatusUpdated) > 0
}

// Err aggregates the errors of all failed outcomes. It returns nil if no
// plugin failed.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed && o.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", o.Name, o.Err))
		}
	}
	return result.ErrorOrNil()
}
