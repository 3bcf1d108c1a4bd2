package config

import "time"

type Bot struct {
	DiscordToken          string        `env:"DISCORD_TOKEN"`
	APIURL                string        `env:"API_URL" envDefault:"http://localhost:8080"`
	APIToken              string        `env:"API_TOKEN"`
	APIRateLimit          float64       `env:"API_RATE_LIMIT" envDefault:"20"`
	SpotifyClientID       string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string        `env:"SPOTIFY_CLIENT_SECRET"`
	YouTubeCookiesPath    string        `env:"YOUTUBE_COOKIES_PATH"`
	YouTubePOToken        string        `env:"YOUTUBE_PO_TOKEN"`
	RegisterCommandsOnBot bool          `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	PlaylistLimit         int           `env:"PLAYLIST_LIMIT" envDefault:"25"`
	StartTimeout          time.Duration `env:"START_TIMEOUT" envDefault:"10s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT" envDefault:"24h"`
	ReadyTimeout          time.Duration `env:"READY_TIMEOUT" envDefault:"10s"`
	LogLevel              string        `env:"LOG_LEVEL" envDefault:"info"`
}

type API struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DataDir    string `env:"DATA_DIR" envDefault:"./data"`
	APIToken   string `env:"API_TOKEN"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}
