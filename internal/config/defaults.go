package config

const (
	defaultBaseURL             = "http://localhost:8000"
	defaultRequestTimeout      = 30
	defaultStorageHost         = "minio"
	defaultStorageHostRewrite  = "localhost"
	defaultDataDir             = "~/.local/share/transcoderctl"
	defaultLogDir              = "~/.local/share/transcoderctl/logs"
	defaultDownloadDir         = "~/Downloads"
	defaultLedgerFile          = "ledger.db"
	defaultPageSize            = 10
	defaultAlertDismissSeconds = 10
	defaultSubmitResetMillis   = 2500
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// PageSizes lists the page sizes the collection views accept.
var PageSizes = []int{10, 25, 50}

// ValidPageSize reports whether size is one of PageSizes.
func ValidPageSize(size int) bool {
	for _, allowed := range PageSizes {
		if size == allowed {
			return true
		}
	}
	return false
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:            defaultBaseURL,
			RequestTimeout:     defaultRequestTimeout,
			StorageHost:        defaultStorageHost,
			StorageHostRewrite: defaultStorageHostRewrite,
		},
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			DownloadDir: defaultDownloadDir,
		},
		UI: UI{
			PageSize:            defaultPageSize,
			AlertDismissSeconds: defaultAlertDismissSeconds,
			SubmitResetMillis:   defaultSubmitResetMillis,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
