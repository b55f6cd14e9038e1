package registry

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type Registry struct {
	ID        string                   `toml:"id"`
	CreatedAt time.Time                `toml:"created_date"`
	APIToken  string                   `toml:"github_token"`
	Plugins   map[string]*PluginRecord `toml:"plugins"`
}

type PluginRecord struct {
	Name          string    `toml:"name"`
	Version       string    `toml:"version"`
	IntroducedAt  time.Time `toml:"introduced_date"`
	Description   string    `toml:"description,omitempty"`
	PreRelease    bool      `toml:"prerelease"`
	FileName      string    `toml:"file_name"`
	RepositoryURL string    `toml:"repository_url"`
}

func New() *Registry {
	return &Registry{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Plugins:   make(map[string]*PluginRecord),
	}
}

func (r *Registry) ensure() {
	if r.Plugins == nil {
		r.Plugins = make(map[string]*PluginRecord)
	}
}

func (r *Registry) Len() int {
	return len(r.Plugins)
}

func (r *Registry) Get(name string) (*PluginRecord, bool) {
	p, ok := r.Plugins[name]
	return p, ok
}

// Insert stores the record under its name, replacing any existing record.
func (r *Registry) Insert(p *PluginRecord) {
	r.ensure()
	r.Plugins[p.Name] = p
}

func (r *Registry) Remove(name string) (*PluginRecord, bool) {
	p, ok := r.Plugins[name]
	if !ok {
		return nil, false
	}
	delete(r.Plugins, name)
	return p, true
}

// RemoveByFileName removes the first record (in name order) that points to
// fileName. Other records sharing the same file name are left untouched.
func (r *Registry) RemoveByFileName(fileName string) (*PluginRecord, bool) {
	for _, name := range r.Names() {
		if r.Plugins[name].FileName == fileName {
			return r.Remove(name)
		}
	}
	return nil, false
}

// CountByFileName returns how many records point to fileName.
func (r *Registry) CountByFileName(fileName string) int {
	cnt := 0
	for _, p := range r.Plugins {
		if p.FileName == fileName {
			cnt++
		}
	}
	return cnt
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Plugins))
	for name := range r.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) NamesWithoutPreRelease() []string {
	names := make([]string, 0, len(r.Plugins))
	for _, name := range r.Names() {
		if !r.Plugins[name].PreRelease {
			names = append(names, name)
		}
	}
	return names
}

func (r *Registry) Records() []*PluginRecord {
	ret := make([]*PluginRecord, 0, len(r.Plugins))
	for _, name := range r.Names() {
		ret = append(ret, r.Plugins[name])
	}
	return ret
}
