package config

import (
	"context"
	"time"

	"github.com/go-mngr/mngr/internal/artifact"
	"github.com/google/go-github/v59/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Config struct {
	RegistryFile string        `envconfig:"MNGR_REGISTRY_FILE" default:"mngr.toml"`
	PluginsDir   string        `envconfig:"MNGR_PLUGINS_DIR" default:"plugins"`
	GitHubToken  string        `envconfig:"MNGR_GITHUB_TOKEN"`
	GitHubAPIURL string        `envconfig:"MNGR_GITHUB_API_URL"`
	GitHubURL    string        `envconfig:"MNGR_GITHUB_URL" default:"https://github.com"`
	HTTPRetryMax int           `envconfig:"MNGR_HTTP_RETRY_MAX" default:"3"`
	HTTPTimeout  time.Duration `envconfig:"MNGR_HTTP_TIMEOUT" default:"3m"`
	LogLevel     string        `envconfig:"MNGR_LOG_LEVEL" default:"warn"`
	Version      string
}

func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) GetLogLevel() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// Token returns the API token for this session. The environment takes
// precedence over the token stored in the registry.
func (c *Config) Token(registryToken string) string {
	if c.GitHubToken != "" {
		return c.GitHubToken
	}
	return registryToken
}

func (c *Config) newRetryableClient() *retryablehttp.Client {
	return artifact.NewRetryableClient(c.HTTPRetryMax, c.HTTPTimeout)
}

// CreateGitHubClient returns an API client that sends token as bearer
// credential if it is not empty.
func (c *Config) CreateGitHubClient(token string) (*github.Client, error) {
	rc := c.newRetryableClient()
	// hand the last response to go-github so that it can report the status code
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient := rc.StandardClient()
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	ghClient := github.NewClient(httpClient)
	ghClient.UserAgent = artifact.DefaultUserAgent
	if c.GitHubAPIURL == "" {
		return ghClient, nil
	}
	return ghClient.WithEnterpriseURLs(c.GitHubAPIURL, c.GitHubAPIURL)
}

func (c *Config) CreateDownloader() *artifact.Downloader {
	return artifact.NewDownloader(c.newRetryableClient(), artifact.DefaultUserAgent)
}
