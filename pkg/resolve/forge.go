package resolve

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/httputil"
	"github.com/licensebundle/licensebundle/pkg/license"
	"github.com/licensebundle/licensebundle/pkg/observability"
)

// repoURLPattern extracts owner and repository from a GitHub URL,
// tolerating a trailing .git, path segments, query strings and fragments.
var repoURLPattern = regexp.MustCompile(`https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:[/?#]|$)`)

// GitHub resolves licenses through the GitHub repository license
// endpoint, which also reports the detected SPDX identifier.
type GitHub struct {
	baseURL string
	token   string
	client  *http.Client
}

// GitHubOption customizes a GitHub source.
type GitHubOption func(*GitHub)

// WithBaseURL overrides the API host, for GitHub Enterprise or tests.
func WithBaseURL(u string) GitHubOption {
	return func(g *GitHub) { g.baseURL = strings.TrimSuffix(u, "/") }
}

// WithToken authenticates requests, raising the rate limit.
func WithToken(token string) GitHubOption {
	return func(g *GitHub) { g.token = token }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) { g.client = c }
}

// NewGitHub creates a GitHub license source.
func NewGitHub(opts ...GitHubOption) *GitHub {
	g := &GitHub{
		baseURL: "https://api.github.com",
		client:  httputil.NewClient(30 * time.Second),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitHub) Name() string { return license.ProvenanceRemoteAPI.String() }

// licenseResponse mirrors the fields we use from the license endpoint.
type licenseResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	License  struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

// Attempt queries the license endpoint for the request's repository.
// Requests without a recognizable GitHub URL yield (nil, nil), as does a
// 404 from the endpoint. Auth failures, rate limits and network errors
// are reported so the chain can fall through to version control.
func (g *GitHub) Attempt(ctx context.Context, req Request) (*Resolution, error) {
	owner, repo, ok := MatchRepo(req.Repository)
	if !ok {
		return nil, nil
	}

	url := fmt.Sprintf("%s/repos/%s/%s/license", g.baseURL, owner, repo)
	var payload licenseResponse
	notFound := false

	err := httputil.RetryWithBackoff(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return lberrors.Wrap(lberrors.ErrCodeInternal, err, "build request")
		}
		httpReq.Header.Set("Accept", "application/vnd.github.v3+json")
		if g.token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+g.token)
		}

		path := httpReq.URL.Path
		observability.HTTP().OnRequest(ctx, http.MethodGet, httpReq.URL.Host, path)
		start := time.Now()
		resp, err := g.client.Do(httpReq)
		if err != nil {
			observability.HTTP().OnError(ctx, http.MethodGet, httpReq.URL.Host, path, err)
			return httputil.WrapTransportError(err, "query %s/%s", owner, repo)
		}
		defer resp.Body.Close()
		observability.HTTP().OnResponse(ctx, http.MethodGet, httpReq.URL.Host, path, resp.StatusCode, time.Since(start))

		if resp.StatusCode == http.StatusNotFound {
			notFound = true
			return nil
		}
		if err := httputil.CheckStatus(resp); err != nil {
			return err
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&payload); err != nil {
			return lberrors.Wrap(lberrors.ErrCodeSourceFailed, err, "decode license response for %s/%s", owner, repo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notFound || payload.Content == "" {
		return nil, nil
	}

	text := payload.Content
	if payload.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(text, "\n", ""))
		if err != nil {
			return nil, lberrors.Wrap(lberrors.ErrCodeSourceFailed, err, "decode license content for %s/%s", owner, repo)
		}
		text = string(decoded)
	}

	spdx := payload.License.SPDXID
	if spdx == "NOASSERTION" {
		spdx = ""
	}
	return &Resolution{
		Provenance: license.ProvenanceRemoteAPI,
		LicenseID:  spdx,
		Text:       strings.TrimSpace(text),
	}, nil
}

// MatchRepo extracts the owner and repository name from a GitHub URL.
func MatchRepo(repoURL string) (owner, repo string, ok bool) {
	m := repoURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
