// Package config holds the settings of an offline-repo run.
//
// Settings come from, in increasing precedence: built-in defaults, an
// optional YAML file (--config or OFFLINE_REPO_CONFIG), a .env file in
// the project directory, process environment variables, and command-line
// flags. Values in the YAML file may reference ${VAR} or ${VAR:-default}.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/offlinerepo/fetch"
	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/resolve"
)

// Environment variables read by LoadEnv.
const (
	EnvConfig         = "OFFLINE_REPO_CONFIG"
	EnvRepoDir        = "OFFLINE_REPO_DIR"
	EnvRepoMode       = "OFFLINE_REPO_MODE"
	EnvRemoteURL      = "OFFLINE_REPO_REMOTE_URL"
	EnvCacheDir       = "OFFLINE_REPO_CACHE_DIR"
	EnvFailurePolicy  = "OFFLINE_REPO_FAILURE_POLICY"
	EnvResolveTimeout = "OFFLINE_REPO_RESOLVE_TIMEOUT"
	EnvUserAgent      = "OFFLINE_REPO_USER_AGENT"
	EnvMaxRetries     = "OFFLINE_REPO_MAX_RETRIES"
	EnvRemoteUsername = "OFFLINE_REPO_REMOTE_USERNAME"
	EnvRemotePassword = "OFFLINE_REPO_REMOTE_PASSWORD"
	EnvRemoteToken    = "OFFLINE_REPO_REMOTE_TOKEN"
	EnvS3Endpoint     = "OFFLINE_REPO_S3_ENDPOINT"
	EnvS3Region       = "OFFLINE_REPO_S3_REGION"
	EnvS3AccessKey    = "OFFLINE_REPO_S3_ACCESS_KEY"
	EnvS3SecretKey    = "OFFLINE_REPO_S3_SECRET_KEY"
	EnvS3Bucket       = "OFFLINE_REPO_S3_BUCKET"
	EnvS3Prefix       = "OFFLINE_REPO_S3_PREFIX"
	EnvS3UseSSL       = "OFFLINE_REPO_S3_USE_SSL"
)

// DefaultRepoDir is the repository root relative to the project directory.
const DefaultRepoDir = "offline-repo"

// Config is the configuration of a run.
type Config struct {
	// OfflineRepoDir is the repository root. Relative paths resolve
	// against the project directory.
	OfflineRepoDir string `yaml:"offlineRepoDir"`

	// RepoMode selects the artifact source: bootstrap reads the remote
	// repository, consume reads only the offline repository.
	RepoMode string `yaml:"repoMode"`

	// RemoteURL is the remote Maven repository used in bootstrap mode.
	RemoteURL string `yaml:"remoteUrl"`

	// CacheDir stores downloaded files. Empty uses the user cache directory.
	CacheDir string `yaml:"cacheDir"`

	// ResolveTimeout bounds the resolution of one grouping (e.g. "5m").
	ResolveTimeout string `yaml:"resolveTimeout"`

	// FailurePolicy is fail-fast or continue.
	FailurePolicy string `yaml:"failurePolicy"`

	UserAgent string `yaml:"userAgent"`

	// MaxRetries is the number of retries of a failed download. Zero
	// disables retrying.
	MaxRetries int `yaml:"maxRetries"`

	// RemoteAuth authenticates against a private remote repository.
	// Credentials are only sent to the RemoteURL host.
	RemoteAuth RemoteAuth `yaml:"remoteAuth"`

	// Publish configures the object storage target of the publish command.
	Publish PublishConfig `yaml:"publish"`
}

// RemoteAuth holds remote repository credentials. Token selects bearer
// authentication; otherwise Username and Password are sent as basic auth.
type RemoteAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// PublishConfig configures an S3-compatible bucket.
type PublishConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OfflineRepoDir: DefaultRepoDir,
		RepoMode:       core.ModeBootstrap,
		RemoteURL:      fetch.DefaultRemoteURL,
		ResolveTimeout: resolve.DefaultTimeout.String(),
		FailurePolicy:  string(resolve.FailFast),
		UserAgent:      fetch.DefaultUserAgent,
		MaxRetries:     3,
		Publish: PublishConfig{
			Region: "us-east-1",
			UseSSL: true,
		},
	}
}

// LoadFile loads a YAML configuration file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// Load returns the defaults, or the file named by path or by
// OFFLINE_REPO_CONFIG when either is set.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadEnv reads dotenv files (missing files are ignored) into the process
// environment and applies OFFLINE_REPO_* overrides to c. Variables already
// set in the environment win over dotenv values.
func (c *Config) LoadEnv(dotenv ...string) error {
	for _, file := range dotenv {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}

	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.OfflineRepoDir, EnvRepoDir)
	override(&c.RepoMode, EnvRepoMode)
	override(&c.RemoteURL, EnvRemoteURL)
	override(&c.CacheDir, EnvCacheDir)
	override(&c.FailurePolicy, EnvFailurePolicy)
	override(&c.ResolveTimeout, EnvResolveTimeout)
	override(&c.UserAgent, EnvUserAgent)
	override(&c.RemoteAuth.Username, EnvRemoteUsername)
	override(&c.RemoteAuth.Password, EnvRemotePassword)
	override(&c.RemoteAuth.Token, EnvRemoteToken)
	override(&c.Publish.Endpoint, EnvS3Endpoint)
	override(&c.Publish.Region, EnvS3Region)
	override(&c.Publish.AccessKey, EnvS3AccessKey)
	override(&c.Publish.SecretKey, EnvS3SecretKey)
	override(&c.Publish.Bucket, EnvS3Bucket)
	override(&c.Publish.Prefix, EnvS3Prefix)

	if raw := strings.TrimSpace(os.Getenv(EnvS3UseSSL)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvS3UseSSL, err)
		}
		c.Publish.UseSSL = v
	}
	if raw := strings.TrimSpace(os.Getenv(EnvMaxRetries)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRetries, err)
		}
		c.MaxRetries = n
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.OfflineRepoDir) == "" {
		errs = append(errs, fmt.Errorf("offlineRepoDir is required"))
	}
	switch c.RepoMode {
	case core.ModeBootstrap, core.ModeConsume:
	default:
		errs = append(errs, fmt.Errorf("invalid repoMode %q (want %s or %s)", c.RepoMode, core.ModeBootstrap, core.ModeConsume))
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must not be negative"))
	}
	if c.RemoteAuth.Password != "" && c.RemoteAuth.Username == "" && c.RemoteAuth.Token == "" {
		errs = append(errs, fmt.Errorf("remoteAuth.password requires remoteAuth.username"))
	}

	return errors.Join(errs...)
}

// Timeout parses ResolveTimeout. Empty selects the default.
func (c *Config) Timeout() (time.Duration, error) {
	if c.ResolveTimeout == "" {
		return resolve.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.ResolveTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid resolveTimeout %q: %w", c.ResolveTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("resolveTimeout must be positive, got %s", d)
	}
	return d, nil
}

// Policy parses FailurePolicy.
func (c *Config) Policy() (resolve.FailurePolicy, error) {
	return resolve.ParsePolicy(c.FailurePolicy)
}

// RepositoryRoot returns the absolute repository root for a project
// directory.
func (c *Config) RepositoryRoot(projectDir string) (string, error) {
	dir := c.OfflineRepoDir
	if dir == "" {
		dir = DefaultRepoDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectDir, dir)
	}
	return filepath.Abs(dir)
}

// SourceConfig returns the artifact source settings for a project.
func (c *Config) SourceConfig(projectDir string) (fetch.SourceConfig, error) {
	root, err := c.RepositoryRoot(projectDir)
	if err != nil {
		return fetch.SourceConfig{}, err
	}
	return fetch.SourceConfig{
		RemoteURL:  c.RemoteURL,
		MirrorDir:  root,
		UserAgent:  c.UserAgent,
		MaxRetries: c.MaxRetries,
		Credentials: fetch.Credentials{
			Username: c.RemoteAuth.Username,
			Password: c.RemoteAuth.Password,
			Token:    c.RemoteAuth.Token,
		},
	}, nil
}

func (c *Config) expandVariables() {
	c.OfflineRepoDir = expandVars(c.OfflineRepoDir)
	c.RemoteURL = expandVars(c.RemoteURL)
	c.CacheDir = expandVars(c.CacheDir)
	c.RemoteAuth.Username = expandVars(c.RemoteAuth.Username)
	c.RemoteAuth.Password = expandVars(c.RemoteAuth.Password)
	c.RemoteAuth.Token = expandVars(c.RemoteAuth.Token)
	c.Publish.Endpoint = expandVars(c.Publish.Endpoint)
	c.Publish.AccessKey = expandVars(c.Publish.AccessKey)
	c.Publish.SecretKey = expandVars(c.Publish.SecretKey)
	c.Publish.Bucket = expandVars(c.Publish.Bucket)
	c.Publish.Prefix = expandVars(c.Publish.Prefix)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
