package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/ethpandaops/buildmatrixoor/pkg/fsutil"
	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultJobsRoot is the default root of the Jenkins jobs tree.
	DefaultJobsRoot = "/mnt/hudson/jobs"

	// DefaultMatch selects the 6.1 platform jobs.
	DefaultMatch = `.*6[-\.]1.*platform`

	// DefaultTitle is the default report caption.
	DefaultTitle = "JBoss Fuse 6.1 Platform Test Results"

	// DefaultOutputDir is the default directory the report is written to.
	DefaultOutputDir = "results"

	// DefaultFileName is the report file name without extension.
	DefaultFileName = "results"

	// DefaultConcurrency is the number of projects aggregated in parallel.
	DefaultConcurrency = 4

	// DefaultURLTemplate links a cell to its Jenkins matrix-run page.
	DefaultURLTemplate = "{{.Root}}/job/{{.Project}}/{{.BuildNumber}}/" +
		"{{.RuntimeAxis}}={{.Runtime}},{{.PlatformAxis}}={{.Platform}}/"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultRefreshInterval is how often the API regenerates the report.
	DefaultRefreshInterval = "5m"

	// URLRootEnv is consulted when report.url_root is not set.
	URLRootEnv = "JENKINS_URL"

	envPrefix = "BUILDMATRIXOOR"
)

// Config is the root configuration for buildmatrixoor.
type Config struct {
	Global GlobalConfig `yaml:"global" mapstructure:"global"`
	Jobs   JobsConfig   `yaml:"jobs" mapstructure:"jobs"`
	Report ReportConfig `yaml:"report" mapstructure:"report"`
	API    APIConfig    `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// JobsConfig describes where the job tree lives and how it is shaped.
type JobsConfig struct {
	Root   string       `yaml:"root" mapstructure:"root"`
	Match  string       `yaml:"match" mapstructure:"match"`
	Layout LayoutConfig `yaml:"layout" mapstructure:"layout"`
	Prune  PruneConfig  `yaml:"prune" mapstructure:"prune"`
}

// LayoutConfig names the path segments of a matrix job configuration:
// <project>/<configurations_dir>/<runtime_marker>/<runtime>/<platform_marker>/<platform>/<builds_dir>.
type LayoutConfig struct {
	ConfigurationsDir string `yaml:"configurations_dir" mapstructure:"configurations_dir"`
	RuntimeMarker     string `yaml:"runtime_marker" mapstructure:"runtime_marker"`
	PlatformMarker    string `yaml:"platform_marker" mapstructure:"platform_marker"`
	BuildsDir         string `yaml:"builds_dir" mapstructure:"builds_dir"`
	Descriptor        string `yaml:"descriptor" mapstructure:"descriptor"`
	LegacySuffix      string `yaml:"legacy_suffix" mapstructure:"legacy_suffix"`
}

// PruneConfig lists axis values dropped after discovery.
type PruneConfig struct {
	Platforms []string `yaml:"platforms" mapstructure:"platforms"`
	Runtimes  []string `yaml:"runtimes" mapstructure:"runtimes"`
}

// ReportConfig controls rendering and publishing of the report.
type ReportConfig struct {
	Title       string         `yaml:"title" mapstructure:"title"`
	OutputDir   string         `yaml:"output_dir" mapstructure:"output_dir"`
	FileName    string         `yaml:"file_name" mapstructure:"file_name"`
	Formats     []string       `yaml:"formats" mapstructure:"formats"`
	URLRoot     string         `yaml:"url_root,omitempty" mapstructure:"url_root"`
	URLTemplate string         `yaml:"url_template" mapstructure:"url_template"`
	Concurrency int            `yaml:"concurrency" mapstructure:"concurrency"`
	Owner       string         `yaml:"owner,omitempty" mapstructure:"owner"`
	Upload      S3UploadConfig `yaml:"upload,omitempty" mapstructure:"upload"`
	Export      ExportConfig   `yaml:"export,omitempty" mapstructure:"export"`
	Metrics     MetricsConfig  `yaml:"metrics,omitempty" mapstructure:"metrics"`
}

// S3UploadConfig configures publishing the rendered report to S3.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// ExportConfig configures writing each generated matrix to a database.
type ExportConfig struct {
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// Load reads configuration from the optional file at path, environment
// variables prefixed with BUILDMATRIXOOR_ and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("jobs.root", DefaultJobsRoot)
	v.SetDefault("jobs.match", DefaultMatch)
	v.SetDefault("jobs.layout.configurations_dir", "configurations")
	v.SetDefault("jobs.layout.runtime_marker", "axis-jdk")
	v.SetDefault("jobs.layout.platform_marker", "axis-label")
	v.SetDefault("jobs.layout.builds_dir", "builds")
	v.SetDefault("jobs.layout.descriptor", "build.xml")
	v.SetDefault("jobs.layout.legacy_suffix", "legacyIds")
	v.SetDefault("jobs.prune.platforms", []string{"ubuntu", "win"})
	v.SetDefault("jobs.prune.runtimes", []string{"jdk5"})

	v.SetDefault("report.title", DefaultTitle)
	v.SetDefault("report.output_dir", DefaultOutputDir)
	v.SetDefault("report.file_name", DefaultFileName)
	v.SetDefault("report.formats", []string{"html"})
	v.SetDefault("report.url_root", "")
	v.SetDefault("report.url_template", DefaultURLTemplate)
	v.SetDefault("report.concurrency", DefaultConcurrency)
	v.SetDefault("report.owner", "")
	v.SetDefault("report.upload.enabled", false)
	v.SetDefault("report.upload.endpoint_url", "")
	v.SetDefault("report.upload.region", "")
	v.SetDefault("report.upload.bucket", "")
	v.SetDefault("report.upload.prefix", "")
	v.SetDefault("report.upload.access_key_id", "")
	v.SetDefault("report.upload.secret_access_key", "")
	v.SetDefault("report.upload.force_path_style", false)
	v.SetDefault("report.export.enabled", false)
	v.SetDefault("report.export.database.driver", "sqlite")
	v.SetDefault("report.export.database.sqlite.path", "buildmatrixoor.db")
	v.SetDefault("report.metrics.textfile", "")

	v.SetDefault("api.listen", DefaultListen)
	v.SetDefault("api.refresh_interval", DefaultRefreshInterval)
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.requests_per_minute", 120)
	v.SetDefault("api.basic_auth.enabled", false)
}

// ResolveURLRoot returns the base URL used to build cell links. The configured
// value wins over the JENKINS_URL environment variable. The result never
// ends in a slash and may be empty.
func (c *ReportConfig) ResolveURLRoot() string {
	root := c.URLRoot
	if root == "" {
		root = os.Getenv(URLRootEnv)
	}

	return strings.TrimRight(root, "/")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Jobs.Root == "" {
		return errors.New("jobs.root is required")
	}

	if c.Jobs.Match == "" {
		return errors.New("jobs.match is required")
	}

	if _, err := regexp.Compile(c.Jobs.Match); err != nil {
		return fmt.Errorf("jobs.match: invalid expression %q: %w", c.Jobs.Match, err)
	}

	if err := c.Jobs.Layout.validate(); err != nil {
		return fmt.Errorf("jobs.layout: %w", err)
	}

	if err := c.Report.validate(); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return nil
}

// ValidateAPI checks the api section in addition to Validate.
func (c *Config) ValidateAPI() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.API.Listen == "" {
		return errors.New("api.listen is required")
	}

	if _, err := c.API.RefreshEvery(); err != nil {
		return fmt.Errorf("api.refresh_interval: %w", err)
	}

	if c.API.RateLimit.Enabled && c.API.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("api.rate_limit.requests_per_minute must be positive")
	}

	if c.API.BasicAuth.Enabled {
		if len(c.API.BasicAuth.Users) == 0 {
			return errors.New("api.basic_auth: at least one user is required")
		}

		for i, u := range c.API.BasicAuth.Users {
			if u.Username == "" || u.PasswordHash == "" {
				return fmt.Errorf("api.basic_auth.users[%d]: username and password_hash are required", i)
			}
		}
	}

	return nil
}

func (l *LayoutConfig) validate() error {
	segments := map[string]string{
		"configurations_dir": l.ConfigurationsDir,
		"runtime_marker":     l.RuntimeMarker,
		"platform_marker":    l.PlatformMarker,
		"builds_dir":         l.BuildsDir,
		"descriptor":         l.Descriptor,
	}

	for name, value := range segments {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}

		if strings.ContainsRune(value, '/') || strings.ContainsRune(value, filepath.Separator) {
			return fmt.Errorf("%s %q must be a single path segment", name, value)
		}
	}

	if l.RuntimeMarker == l.PlatformMarker {
		return fmt.Errorf("runtime_marker and platform_marker must differ (both %q)", l.RuntimeMarker)
	}

	return nil
}

// validFormats is the list of supported report formats.
var validFormats = map[string]struct{}{
	"html": {},
	"text": {},
	"json": {},
}

func (r *ReportConfig) validate() error {
	if r.OutputDir == "" {
		return errors.New("output_dir is required")
	}

	if r.FileName == "" {
		return errors.New("file_name is required")
	}

	if len(r.Formats) == 0 {
		return errors.New("at least one format is required")
	}

	for _, f := range r.Formats {
		if _, ok := validFormats[f]; !ok {
			return fmt.Errorf("unknown format %q", f)
		}
	}

	if r.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", r.Concurrency)
	}

	if _, err := template.New("url").Parse(r.URLTemplate); err != nil {
		return fmt.Errorf("url_template: %w", err)
	}

	if _, err := fsutil.ParseOwner(r.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}

	if r.Upload.Enabled && r.Upload.Bucket == "" {
		return errors.New("upload.bucket is required when upload is enabled")
	}

	if r.Export.Enabled {
		switch r.Export.Database.Driver {
		case "sqlite":
			if r.Export.Database.SQLite.Path == "" {
				return errors.New("export.database.sqlite.path is required")
			}
		case "postgres":
			if r.Export.Database.Postgres.Host == "" {
				return errors.New("export.database.postgres.host is required")
			}
		default:
			return fmt.Errorf("export.database: unsupported driver %q", r.Export.Database.Driver)
		}
	}

	return nil
}

// RefreshEvery parses the API refresh interval.
func (a *APIConfig) RefreshEvery() (time.Duration, error) {
	d, err := time.ParseDuration(a.RefreshInterval)
	if err != nil {
		return 0, err
	}

	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", d)
	}

	return d, nil
}
