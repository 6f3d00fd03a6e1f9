package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for records, index, media and thumbnails"`

	// Source notes configuration
	SourceDir   string `long:"source-dir" env:"SOURCE_DIR" default:"./notes" description:"Directory containing note files to scan for links"`
	FilePattern string `long:"file-pattern" env:"FILE_PATTERN" default:"*.md" description:"Glob pattern for note files"`
	NoRecursive bool   `long:"no-recursive" env:"NO_RECURSIVE" description:"Do not scan note subdirectories"`

	// HTTP server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for mutating endpoints (optional)"`

	// Network configuration
	UserAgent       string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36" description:"User agent string for HTTP requests"`
	ValidateTimeout int    `long:"validate-timeout" env:"VALIDATE_TIMEOUT" default:"10" description:"Per-request validation timeout in seconds"`
	ValidateRetries int    `long:"validate-retries" env:"VALIDATE_RETRIES" default:"3" description:"Maximum validation attempts per URL"`
	ScrapeTimeout   int    `long:"scrape-timeout" env:"SCRAPE_TIMEOUT" default:"30" description:"Metadata scrape timeout in seconds"`

	// External extraction tool
	YtdlpPath          string `long:"ytdlp-path" env:"YTDLP_PATH" default:"yt-dlp" description:"Path to the yt-dlp binary"`
	CookiesFromBrowser string `long:"cookies-from-browser" env:"COOKIES_FROM_BROWSER" description:"Browser name to read cookies from, forwarded to yt-dlp (e.g. chrome)"`
	CookiesFile        string `long:"cookies-file" env:"COOKIES_FILE" description:"Path to a cookies.txt file, forwarded to yt-dlp"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g. UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DataDir:            raw.DataDir,
		SourceDir:          raw.SourceDir,
		FilePattern:        raw.FilePattern,
		Recursive:          !raw.NoRecursive,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		UserAgent:          raw.UserAgent,
		ValidateTimeout:    raw.ValidateTimeout,
		ValidateRetries:    raw.ValidateRetries,
		ScrapeTimeout:      raw.ScrapeTimeout,
		YtdlpPath:          raw.YtdlpPath,
		CookiesFromBrowser: raw.CookiesFromBrowser,
		CookiesFile:        raw.CookiesFile,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
