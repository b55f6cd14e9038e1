package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v59/github"
)

const headerRateRemaining = "X-RateLimit-Remaining"

// Quota is the remaining API call budget reported by the last response.
type Quota struct {
	Remaining int
	Known     bool
}

func (q Quota) String() string {
	if !q.Known {
		return "unknown"
	}
	return strconv.Itoa(q.Remaining)
}

type Listing struct {
	Releases Set
	Quota    Quota
}

type Client struct {
	gh      *github.Client
	perPage int
}

func NewClient(gh *github.Client) *Client {
	return &Client{gh: gh, perPage: 100}
}

// ListReleases fetches every page of the releases listing of repo and parses
// it into a single Set.
func (c *Client) ListReleases(ctx context.Context, repo *Repository) (*Listing, error) {
	ret := &Listing{Releases: make(Set)}
	page := 1
	for {
		endpoint := fmt.Sprintf("repos/%s/%s/releases?per_page=%d&page=%d", repo.Owner, repo.Name, c.perPage, page)
		req, err := c.gh.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		var payload bytes.Buffer
		resp, err := c.gh.Do(ctx, req, &payload)
		if resp != nil {
			ret.Quota = quotaFromResponse(resp.Response)
		}
		if err != nil {
			return nil, classifyError(resp, err)
		}
		releases, err := Parse(payload.Bytes(), repo.URL())
		if err != nil {
			return nil, err
		}
		ret.Releases.Merge(releases)
		if resp.NextPage == 0 || resp.NextPage == page {
			break
		}
		page = resp.NextPage
	}
	return ret, nil
}

func classifyError(resp *github.Response, err error) error {
	if resp != nil && resp.Response != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		msg := ""
		var errResp *github.ErrorResponse
		if errors.As(err, &errResp) {
			msg = errResp.Message
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &TransportError{Err: err}
}

func quotaFromResponse(resp *http.Response) Quota {
	if resp == nil {
		return Quota{}
	}
	v := strings.TrimSpace(resp.Header.Get(headerRateRemaining))
	if v == "" {
		return Quota{}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return Quota{}
	}
	return Quota{Remaining: n, Known: true}
}
