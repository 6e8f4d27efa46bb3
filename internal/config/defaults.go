package config

const (
	defaultLibraryDir          = "~/.local/share/montage/library"
	defaultLogDir              = "~/.local/share/montage/logs"
	defaultAPIBind             = "127.0.0.1:7812"
	defaultFetchTimeoutSeconds = 60
	defaultFetchMaxBytes       = 256 << 20 // 256 MiB
	defaultFetchMaxRedirects   = 3
	defaultFetchMaxAttempts    = 3
	defaultRenderKeep          = 3
	defaultProgressStep        = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			MaxBytes:       defaultFetchMaxBytes,
			MaxRedirects:   defaultFetchMaxRedirects,
			MaxAttempts:    defaultFetchMaxAttempts,
		},
		Render: Render{
			KeepPerQuality: defaultRenderKeep,
			ProgressStep:   defaultProgressStep,
		},
		Recovery: Recovery{
			RunAtStartup: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
