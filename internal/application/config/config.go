package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`

	// AdminTokenSecret подписывает токены администратора комнаты
	AdminTokenSecret string `env:"ADMIN_TOKEN_SECRET,required,notEmpty"`

	Redis    RedisConfig
	Postgres PostgresConfig
	Rooms    RoomsConfig
	Chat     ChatConfig
}

type RedisConfig struct {
	// URL пустой - работаем только с памятью процесса
	URL     string        `env:"REDIS_URL"`
	Timeout time.Duration `env:"REDIS_TIMEOUT" envDefault:"500ms"`
}

type PostgresConfig struct {
	Enabled bool   `env:"POSTGRES_ENABLED" envDefault:"false"`
	URL     string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"roomchat"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

type RoomsConfig struct {
	RegularCapacity  int    `env:"ROOM_CAPACITY" envDefault:"50"`
	LocationCapacity int    `env:"LOCATION_ROOM_CAPACITY" envDefault:"100"`
	LocationPrefix   string `env:"LOCATION_ROOM_PREFIX" envDefault:"LOC_"`

	TeardownGrace time.Duration `env:"ROOM_TEARDOWN_GRACE" envDefault:"10m"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	RoomTTL       time.Duration `env:"ROOM_TTL" envDefault:"168h"`
	KickMarkerTTL time.Duration `env:"KICK_MARKER_TTL" envDefault:"10s"`
}

type ChatConfig struct {
	HistoryLimit      int     `env:"HISTORY_LIMIT" envDefault:"100"`
	MaxMessageLength  int     `env:"MAX_MESSAGE_LENGTH" envDefault:"1000"`
	MessagesPerSecond float64 `env:"MESSAGES_PER_SECOND" envDefault:"5"`
	MessageBurst      int     `env:"MESSAGE_BURST" envDefault:"10"`
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if c.Rooms.RegularCapacity <= 0 || c.Rooms.LocationCapacity <= 0 {
		return nil, fmt.Errorf("room capacity must be positive")
	}

	if c.Rooms.TeardownGrace <= 0 {
		return nil, fmt.Errorf("room teardown grace must be positive")
	}

	return &c, nil
}
