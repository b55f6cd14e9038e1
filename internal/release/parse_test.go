package release

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/require"
)

const testRepoURL = "https://github.com/acme/widget"

func newGitHubRelease(tag string, createdAt time.Time, preRelease bool, assets ...string) *github.RepositoryRelease {
	ghr := &github.RepositoryRelease{
		TagName:    github.String(tag),
		HTMLURL:    github.String("https://github.com/acme/widget/releases/tag/" + tag),
		Prerelease: github.Bool(preRelease),
		Draft:      github.Bool(false),
		CreatedAt:  &github.Timestamp{Time: createdAt},
		Body:       github.String("notes for " + tag),
	}
	for _, a := range assets {
		ghr.Assets = append(ghr.Assets, &github.ReleaseAsset{Name: github.String(a)})
	}
	return ghr
}

func mustMarshal(t *testing.T, v any) []byte {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestParse(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	payload := mustMarshal(t, []*github.RepositoryRelease{
		newGitHubRelease("v1.0.0", jan, false, "widget-1.0.0.jar", "widget-1.0.0-sources.jar"),
		newGitHubRelease("v2.0.0-beta", jun, true, "widget-2.0.0-beta.jar"),
	})

	releases, err := Parse(payload, testRepoURL)
	require.NoError(t, err)
	require.Len(t, releases, 2)

	r := releases[jan.UnixNano()]
	require.NotNil(t, r)
	require.Equal(t, "widget", r.Name)
	require.Equal(t, "v1.0.0", r.Version)
	require.Equal(t, "widget-1.0.0.jar", r.FileName)
	require.Equal(t, "notes for v1.0.0", r.Body)
	require.Equal(t, testRepoURL, r.RepositoryURL)
	require.False(t, r.PreRelease)

	r = releases[jun.UnixNano()]
	require.NotNil(t, r)
	require.True(t, r.PreRelease)
}

func TestParseSkipsIncompleteReleases(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	noPage := newGitHubRelease("v0.3.0", jan.Add(3*time.Hour), false, "a.jar")
	noPage.HTMLURL = nil
	draft := newGitHubRelease("v0.4.0", jan.Add(4*time.Hour), false, "a.jar")
	draft.Draft = github.Bool(true)
	noTimestamp := newGitHubRelease("v0.5.0", jan, false, "a.jar")
	noTimestamp.CreatedAt = nil

	payload := mustMarshal(t, []any{
		newGitHubRelease("v0.1.0", jan.Add(time.Hour), false),
		noPage,
		draft,
		noTimestamp,
		map[string]any{"tag_name": "v0.6.0", "created_at": "not-a-date", "html_url": "https://github.com/acme/widget/releases/tag/v0.6.0"},
		newGitHubRelease("v1.0.0", jan.Add(5*time.Hour), false, "widget.jar"),
	})

	releases, err := Parse(payload, testRepoURL)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, "v1.0.0", Latest(releases).Version)
}

func TestParseSameTimestampLaterWins(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	payload := mustMarshal(t, []*github.RepositoryRelease{
		newGitHubRelease("v1.0.0", jan, false, "a.jar"),
		newGitHubRelease("v1.0.1", jan, false, "b.jar"),
	})
	releases, err := Parse(payload, testRepoURL)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, "v1.0.1", releases[jan.UnixNano()].Version)
}

func TestParseIdempotent(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	payload := mustMarshal(t, []*github.RepositoryRelease{
		newGitHubRelease("v1.0.0", jan, false, "a.jar"),
		newGitHubRelease("v1.1.0", jan.Add(time.Hour), true, "b.jar"),
	})
	first, err := Parse(payload, testRepoURL)
	require.NoError(t, err)
	second, err := Parse(payload, testRepoURL)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestParseInvalidPayload(t *testing.T) {
	for _, payload := range []string{`{"message":"Not Found"}`, `not json`, `[{"tag_name":`} {
		_, err := Parse([]byte(payload), testRepoURL)
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), payload)
	}
}

func TestReleaseToPluginRecord(t *testing.T) {
	r := &Release{
		Name:          "widget",
		Version:       "v1.0.0",
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FileName:      "widget.jar",
		Body:          "notes",
		RepositoryURL: testRepoURL,
	}
	p := r.ToPluginRecord()
	require.Equal(t, "widget", p.Name)
	require.Equal(t, "v1.0.0", p.Version)
	require.Equal(t, r.CreatedAt, p.IntroducedAt)
	require.Equal(t, "notes", p.Description)
	require.Equal(t, "widget.jar", p.FileName)
	require.Equal(t, testRepoURL, p.RepositoryURL)

	dlURL, err := r.DownloadURL()
	require.NoError(t, err)
	require.Equal(t, "https://github.com/acme/widget/releases/download/v1.0.0/widget.jar", dlURL)
}
