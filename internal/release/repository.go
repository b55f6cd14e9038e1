package release

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const DefaultWebURL = "https://github.com"

// owner: alphanumerics and single inner hyphens, at most 39 characters
var ownerRe = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9]|-[a-zA-Z0-9])*$`)

const maxOwnerLength = 39

type Repository struct {
	Owner string
	Name  string
	base  string
}

// ParseRepositoryURL validates rawURL against webURL (scheme and host must
// match) and the <owner>/<repo>[.git] path grammar.
func ParseRepositoryURL(rawURL, webURL string) (*Repository, error) {
	if webURL == "" {
		webURL = DefaultWebURL
	}
	base, err := url.Parse(strings.TrimSuffix(webURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad web url %q: %v", ErrInvalidURL, webURL, err)
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return nil, fmt.Errorf("%w: %q is not a %s repository url", ErrInvalidURL, rawURL, base.Host)
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: %q must not contain credentials, query or fragment", ErrInvalidURL, rawURL)
	}

	path := strings.TrimPrefix(u.Path, strings.TrimSuffix(base.Path, "/"))
	path = strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/")
	owner, repo, found := strings.Cut(path, "/")
	if !found || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: %q must have the form %s/<owner>/<repository>", ErrInvalidURL, rawURL, base.String())
	}
	if len(owner) > maxOwnerLength || !ownerRe.MatchString(owner) {
		return nil, fmt.Errorf("%w: invalid owner %q", ErrInvalidURL, owner)
	}
	repo = strings.TrimSuffix(repo, ".git")
	if repo == "" || repo == "." || repo == ".." {
		return nil, fmt.Errorf("%w: missing repository name", ErrInvalidURL)
	}
	return &Repository{
		Owner: owner,
		Name:  repo,
		base:  base.String(),
	}, nil
}

func (r *Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// URL returns the canonical <base>/<owner>/<repo> form.
func (r *Repository) URL() string {
	return fmt.Sprintf("%s/%s/%s", r.base, r.Owner, r.Name)
}

func (r *Repository) String() string {
	return r.URL()
}

// DownloadURL builds <repositoryURL>/releases/download/<version>/<fileName>.
func DownloadURL(repositoryURL, version, fileName string) (string, error) {
	return url.JoinPath(repositoryURL, "releases", "download", url.PathEscape(version), url.PathEscape(fileName))
}

// nameFromReleasePage extracts the repository segment of
// <base>/<owner>/<repo>/releases/tag/<tag>.
func nameFromReleasePage(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[1]
}
