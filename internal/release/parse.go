package release

import (
	"encoding/json"
	"time"

	"github.com/go-mngr/mngr/pkg/registry"
	"github.com/google/go-github/v59/github"
)

type Release struct {
	Name          string
	Version       string
	CreatedAt     time.Time
	PreRelease    bool
	FileName      string
	Body          string
	RepositoryURL string
}

func (r *Release) DownloadURL() (string, error) {
	return DownloadURL(r.RepositoryURL, r.Version, r.FileName)
}

func (r *Release) ToPluginRecord() *registry.PluginRecord {
	return &registry.PluginRecord{
		Name:          r.Name,
		Version:       r.Version,
		IntroducedAt:  r.CreatedAt,
		Description:   r.Body,
		PreRelease:    r.PreRelease,
		FileName:      r.FileName,
		RepositoryURL: r.RepositoryURL,
	}
}

// Set holds parsed releases keyed by their creation timestamp.
type Set map[int64]*Release

func (s Set) Add(r *Release) {
	s[r.CreatedAt.UnixNano()] = r
}

func (s Set) Merge(o Set) {
	for k, v := range o {
		s[k] = v
	}
}

// Parse decodes a releases listing. Entries without a release page url,
// creation timestamp, tag or asset are skipped, as are drafts. Only the
// first asset of every release is kept.
func Parse(payload []byte, repositoryURL string) (Set, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, &ParseError{Err: err}
	}
	ret := make(Set)
	for _, entry := range entries {
		var ghr github.RepositoryRelease
		if err := json.Unmarshal(entry, &ghr); err != nil {
			continue
		}
		if r := toRelease(&ghr, repositoryURL); r != nil {
			ret.Add(r)
		}
	}
	return ret, nil
}

func toRelease(ghr *github.RepositoryRelease, repositoryURL string) *Release {
	// ignore drafts
	if ghr.GetDraft() {
		return nil
	}
	name := nameFromReleasePage(ghr.GetHTMLURL())
	if name == "" || ghr.GetTagName() == "" {
		return nil
	}
	createdAt := ghr.GetCreatedAt().Time
	if createdAt.IsZero() {
		return nil
	}
	// release has no assets attached
	if len(ghr.Assets) == 0 || ghr.Assets[0].GetName() == "" {
		return nil
	}
	return &Release{
		Name:          name,
		Version:       ghr.GetTagName(),
		CreatedAt:     createdAt.UTC(),
		PreRelease:    ghr.GetPrerelease(),
		FileName:      ghr.Assets[0].GetName(),
		Body:          ghr.GetBody(),
		RepositoryURL: repositoryURL,
	}
}
