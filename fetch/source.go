package fetch

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/git-pkgs/offlinerepo/internal/core"
)

// DefaultRemoteURL is Maven Central.
const DefaultRemoteURL = "https://repo1.maven.org/maven2"

// Source is a repository that artifacts are read from: a base URL plus
// the fetcher able to read it.
type Source struct {
	Mode    string
	BaseURL string
	Fetcher FetcherInterface
}

// SourceConfig carries the settings a source factory may need.
type SourceConfig struct {
	RemoteURL string
	MirrorDir string
	UserAgent string
	// MaxRetries is the number of retries after a failed attempt. Zero
	// disables retrying.
	MaxRetries int
	// Credentials are sent to the remote repository host only.
	Credentials Credentials
}

// SourceFactory builds the source for a repository mode.
type SourceFactory func(cfg SourceConfig) (*Source, error)

var (
	factories = make(map[string]SourceFactory)
	mu        sync.RWMutex
)

func init() {
	Register(core.ModeBootstrap, remoteSource)
	Register(core.ModeConsume, mirrorSource)
}

// Register adds a source factory for a repository mode.
func Register(mode string, factory SourceFactory) {
	mu.Lock()
	defer mu.Unlock()
	factories[mode] = factory
}

// NewSource creates the source for the given repository mode.
func NewSource(mode string, cfg SourceConfig) (*Source, error) {
	mu.RLock()
	factory, ok := factories[mode]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown repository mode: %q (want one of %s)", mode, strings.Join(Modes(), ", "))
	}
	return factory(cfg)
}

// Modes returns all registered repository modes.
func Modes() []string {
	mu.RLock()
	defer mu.RUnlock()

	modes := make([]string, 0, len(factories))
	for mode := range factories {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

func remoteSource(cfg SourceConfig) (*Source, error) {
	base := cfg.RemoteURL
	if base == "" {
		base = DefaultRemoteURL
	}

	opts := []Option{
		WithUserAgent(cfg.UserAgent),
		WithMaxRetries(cfg.MaxRetries),
	}
	if !cfg.Credentials.Empty() {
		opts = append(opts, WithAuthFunc(RepositoryAuth(base, cfg.Credentials)))
	}

	var fetcher FetcherInterface = NewCircuitBreakerFetcher(NewFetcher(opts...))
	if strings.HasPrefix(base, "file:") {
		fetcher = NewFileFetcher()
	}

	return &Source{
		Mode:    core.ModeBootstrap,
		BaseURL: strings.TrimSuffix(base, "/"),
		Fetcher: fetcher,
	}, nil
}

func mirrorSource(cfg SourceConfig) (*Source, error) {
	if cfg.MirrorDir == "" {
		return nil, fmt.Errorf("consume mode requires a mirror directory")
	}
	return &Source{
		Mode:    core.ModeConsume,
		BaseURL: strings.TrimSuffix(FileURL(cfg.MirrorDir), "/"),
		Fetcher: NewFileFetcher(),
	}, nil
}
