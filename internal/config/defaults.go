package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:             "info",
			MaxConcurrentFetches: 3,
		},
		Telegram: TelegramConfig{
			ParseMode: "Markdown",
		},
		Storage: StorageConfig{
			DBPath:      "~/.fetchbot/videos.db",
			DownloadDir: "~/.fetchbot/downloads",
		},
		Retrieval: RetrievalConfig{
			YtdlpPath:  "yt-dlp",
			RateLimit:  "500K",
			TimeoutSec: 900,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9091",
		},
	}
}
