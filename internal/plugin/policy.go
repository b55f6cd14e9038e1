package plugin

import (
	"strings"

	"github.com/go-mngr/mngr/pkg/registry"
)

// Policy selects which registered plugins an update covers and whether
// pre-releases are eligible candidates.
type Policy int

const (
	PolicyAll Policy = iota
	PolicyAllWithPreRelease
	PolicyStable
	PolicyNamed
)

func (p Policy) String() string {
	switch p {
	case PolicyAll:
		return "all"
	case PolicyAllWithPreRelease:
		return "all (including pre-releases)"
	case PolicyStable:
		return "stable"
	case PolicyNamed:
		return "named"
	default:
		return "unknown"
	}
}

// Targets resolves the plugin names covered by policy. names is only used by
// PolicyNamed; unknown names are dropped and duplicates collapsed.
func Targets(reg *registry.Registry, policy Policy, names []string) ([]string, bool) {
	switch policy {
	case PolicyAllWithPreRelease:
		return reg.Names(), true
	case PolicyStable:
		return reg.NamesWithoutPreRelease(), false
	case PolicyNamed:
		seen := make(map[string]struct{}, len(names))
		ret := make([]string, 0, len(names))
		for _, name := range names {
			if _, ok := reg.Get(name); !ok {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			ret = append(ret, name)
		}
		return ret, false
	default:
		return reg.Names(), false
	}
}

// SplitNames splits a comma separated list of plugin names.
func SplitNames(list string) []string {
	ret := make([]string, 0)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			ret = append(ret, name)
		}
	}
	return ret
}
