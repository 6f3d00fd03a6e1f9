package cfg

type Cfg struct {
	// Storage configuration
	DataDir string

	// Source notes configuration
	SourceDir   string
	FilePattern string
	Recursive   bool

	// HTTP server configuration
	Port         string
	APIAccessKey string

	// Network configuration
	UserAgent       string
	ValidateTimeout int
	ValidateRetries int
	ScrapeTimeout   int

	// External extraction tool
	YtdlpPath          string
	CookiesFromBrowser string
	CookiesFile        string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
