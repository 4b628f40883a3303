package config

const (
	defaultDataDir = "~/.local/share/entryway"
	defaultLogDir  = "~/.local/share/entryway/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultVideoMaxBytes             = 200 << 20
	defaultImageMaxBytes             = 10 << 20
	defaultVideoDurationLimitSeconds = 600

	defaultTicketRequestTimeout   = 10
	defaultVideoUploadTimeout     = 300
	defaultThumbnailUploadTimeout = 30
	defaultSessionRefreshTimeout  = 3
)

func defaultVideoMIMETypes() []string {
	return []string{"video/mp4", "video/quicktime", "video/webm"}
}

func defaultImageMIMETypes() []string {
	return []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Limits: Limits{
			VideoMaxBytes:             defaultVideoMaxBytes,
			ImageMaxBytes:             defaultImageMaxBytes,
			VideoMIMETypes:            defaultVideoMIMETypes(),
			ImageMIMETypes:            defaultImageMIMETypes(),
			VideoDurationLimitSeconds: defaultVideoDurationLimitSeconds,
		},
		Timeouts: Timeouts{
			TicketRequest:   defaultTicketRequestTimeout,
			VideoUpload:     defaultVideoUploadTimeout,
			ThumbnailUpload: defaultThumbnailUploadTimeout,
			SessionRefresh:  defaultSessionRefreshTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
