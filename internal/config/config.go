package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "hostcrawl"

	// DefaultDepth downloads the seed and two further layers of links.
	DefaultDepth = 3

	// DefaultDownloaders is the size of the download worker pool.
	DefaultDownloaders = 16

	// DefaultExtractors is the size of the link extraction worker pool.
	DefaultExtractors = 16

	// DefaultPerHost caps simultaneous downloads against one host. It is
	// lower than the library default so the CLI stays polite out of the box.
	DefaultPerHost = 2

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultTorTimeout replaces DefaultTimeout when crawling through Tor,
	// where every request crosses several relays.
	DefaultTorTimeout = 120 * time.Second

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 4

	// DefaultCrawlDelay is the minimum interval between requests. Zero
	// leaves pacing to the per-host cap.
	DefaultCrawlDelay = time.Duration(0)

	// DefaultUserAgent identifies hostcrawl in HTTP requests.
	DefaultUserAgent = "hostcrawl/1.0 (+https://github.com/nao1215/hostcrawl)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultShutdownTimeout bounds how long an interrupted crawl waits for
	// running downloads.
	DefaultShutdownTimeout = time.Second

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultKafkaTopic receives page events when Kafka brokers are set.
	DefaultKafkaTopic = "hostcrawl.pages"

	// DefaultRedisTTL is how long crawl status entries live in Redis.
	DefaultRedisTTL = 24 * time.Hour
)

// Config holds every option of a crawl run. It is filled from defaults, the
// configuration file and CLI flags, then passed down explicitly.
//
// The struct is kept flat; the option count does not justify sub-structs.
type Config struct {
	// Targets are the seed URLs.
	Targets []string

	// Depth is the number of layers to download. 1 downloads only the seed.
	Depth int

	// Downloaders and Extractors size the two worker pools.
	Downloaders int
	Extractors  int

	// PerHost caps simultaneous downloads per host across all seeds.
	PerHost int

	// AllowedHosts restricts the crawl to these hosts. Empty allows all,
	// unless SameSite is set.
	AllowedHosts []string

	// SameSite restricts each crawl to its seed's registrable domain.
	SameSite bool

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// CrawlDelay is the minimum interval between requests; 0 disables it.
	CrawlDelay time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize limits how many bytes of a response are read.
	MaxBodySize int64

	// ShutdownTimeout bounds the wait for running downloads on interrupt.
	ShutdownTimeout time.Duration

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// ProxyAddress routes all requests through a SOCKS5 proxy ("host:port"),
	// typically a system Tor daemon.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON.
	JSONLogs bool

	// ConfigFilePath is an explicit configuration file. When empty, .hostcrawl
	// is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-host settings loaded from the configuration file.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the report format; at most one.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the report instead of stdout.
	ReportFile string

	// SaveToDB archives finished crawls in SQLite under DBDir.
	SaveToDB bool

	// DBDir holds the crawl archive. Defaults to the XDG data directory.
	DBDir string

	// KafkaBrokers enables page events on KafkaTopic.
	KafkaBrokers []string
	KafkaTopic   string

	// RedisAddr enables crawl status tracking in Redis.
	RedisAddr string
	RedisTTL  time.Duration

	// Neo4jURI enables writing the link graph to Neo4j.
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Depth:             DefaultDepth,
		Downloaders:       DefaultDownloaders,
		Extractors:        DefaultExtractors,
		PerHost:           DefaultPerHost,
		Timeout:           DefaultTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		ShutdownTimeout:   DefaultShutdownTimeout,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		KafkaTopic:        DefaultKafkaTopic,
		RedisTTL:          DefaultRedisTTL,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/hostcrawl on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/hostcrawl on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found in the configuration.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Depth < 1 {
		return ErrInvalidDepth
	}
	if c.Downloaders <= 0 {
		return ErrInvalidDownloaders
	}
	if c.Extractors <= 0 {
		return ErrInvalidExtractors
	}
	if c.PerHost <= 0 {
		return ErrInvalidPerHost
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.SameSite && len(c.AllowedHosts) > 0 {
		return ErrConflictingHostFilter
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return ErrMissingKafkaTopic
	}
	return nil
}
