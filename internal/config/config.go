package config

import (
	"fmt"
	"path"
	"strings"

	sessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/env"
	presencedomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"

	"go.uber.org/zap"
)

const (
	PortEnv          = "PORT"
	StoreDriverEnv   = "STORE_DRIVER"
	DatabaseUrlEnv   = "DATABASE_URL"
	RootPathEnv      = "ROOT_PATH"
	JWTSecretEnv     = "JWT_SECRET"
	PublicBaseURLEnv = "PUBLIC_BASE_URL"
	LogLevelEnv      = "LOG_LEVEL"

	HeartbeatIntervalEnv    = "HEARTBEAT_INTERVAL"
	StaleMemberThresholdEnv = "STALE_MEMBER_THRESHOLD"
	CodeTTLEnv              = "CODE_TTL"
	SessionTTLEnv           = "SESSION_TTL"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Logger *zap.Logger

	Port           int
	StoreDriver    string
	DatabaseURL    string
	MigrationsPath string

	JWTSecret     []byte
	PublicBaseURL string

	Sessions sessiondomain.Settings
	Presence presencedomain.Settings
}

func Load() (Config, error) {
	logger, err := newLogger(env.GetStringOrDefault(LogLevelEnv, "info"))
	if err != nil {
		return Config{}, err
	}

	port, err := env.GetIntOrDefault(PortEnv, 8080)
	if err != nil {
		return Config{}, err
	}

	storeDriver := env.GetStringOrDefault(StoreDriverEnv, StoreMemory)

	var dbURL string
	if storeDriver == StorePostgres {
		dbURL = env.MustGetString(DatabaseUrlEnv)
	}

	rootPath := env.GetStringOrDefault(RootPathEnv, ".")
	migrationsPath := path.Join(rootPath, "db", "migrations")

	sessions := sessiondomain.DefaultSettings()
	if sessions.CodeTTL, err = env.GetDurationOrDefault(CodeTTLEnv, sessions.CodeTTL); err != nil {
		return Config{}, err
	}
	if sessions.SessionTTL, err = env.GetDurationOrDefault(SessionTTLEnv, sessions.SessionTTL); err != nil {
		return Config{}, err
	}

	presence := presencedomain.DefaultSettings()
	if presence.HeartbeatInterval, err = env.GetDurationOrDefault(HeartbeatIntervalEnv, presence.HeartbeatInterval); err != nil {
		return Config{}, err
	}
	if presence.StaleThreshold, err = env.GetDurationOrDefault(StaleMemberThresholdEnv, presence.StaleThreshold); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Logger:         logger,
		Port:           port,
		StoreDriver:    storeDriver,
		DatabaseURL:    dbURL,
		MigrationsPath: migrationsPath,
		JWTSecret:      []byte(env.GetStringOrDefault(JWTSecretEnv, "")),
		PublicBaseURL:  strings.TrimSuffix(env.GetStringOrDefault(PublicBaseURLEnv, ""), "/"),
		Sessions:       sessions,
		Presence:       presence,
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s is required for the %s store", DatabaseUrlEnv, StorePostgres)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	if c.Presence.HeartbeatInterval <= 0 || c.Presence.StaleThreshold <= 0 {
		return fmt.Errorf("presence intervals must be positive")
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "debug") {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}
