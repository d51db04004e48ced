// Package github talks to the GitHub releases API and downloads release assets.
package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultAPIBase         = "https://api.github.com"
	DefaultMetadataTimeout = 10 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
)

var (
	// ErrNetwork covers transport failures, timeouts and non-200 responses.
	ErrNetwork = errors.New("network error")
	// ErrParse covers release metadata that cannot be decoded or fails validation.
	ErrParse = errors.New("parse error")
)

// TokenFromEnv returns the first non-empty token from OBJEKTDL_GITHUB_TOKEN
// or GITHUB_TOKEN.
func TokenFromEnv() string {
	if tok := strings.TrimSpace(os.Getenv("OBJEKTDL_GITHUB_TOKEN")); tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
}

func UserAgent(version string) string {
	return fmt.Sprintf("objektdl/%s", version)
}

// Client fetches release metadata for one repository.
type Client struct {
	APIBase         string
	Repo            string
	Token           string
	UserAgent       string
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	HTTP            *http.Client
}

// NewClient returns a Client with default timeouts. An empty apiBase selects
// the public GitHub API.
func NewClient(apiBase, repo, token, userAgent string) *Client {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	return &Client{
		APIBase:         base,
		Repo:            repo,
		Token:           token,
		UserAgent:       userAgent,
		MetadataTimeout: DefaultMetadataTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		HTTP:            &http.Client{},
	}
}

func (c *Client) decorate(req *http.Request, withToken bool) {
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if withToken && c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func (c *Client) httpClient(timeout time.Duration) *http.Client {
	base := c.HTTP
	if base == nil {
		base = &http.Client{}
	}
	clone := *base
	clone.Timeout = timeout
	return &clone
}

// sendsToken reports whether a download URL should carry the API token.
// Tokens only go over https to github.com and its subdomains, or to the
// scheme and host of the configured API base.
func (c *Client) sendsToken(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || u.User != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if u.Scheme == "https" && (host == "github.com" || strings.HasSuffix(host, ".github.com")) {
		return true
	}
	base, err := url.Parse(c.APIBase)
	if err != nil || base.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}
