package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

const (
	IngestHTTP = "http"
	IngestGRPC = "grpc"

	FallbackPostgres = "postgres"
	FallbackSQLite   = "sqlite"
	FallbackMongo    = "mongo"
	FallbackNone     = "none"

	FeedNone   = "none"
	FeedRedis  = "redis"
	FeedMQTT   = "mqtt"
	FeedNDJSON = "ndjson"
)

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	DB       string `yaml:"db"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DSN builds a lib/pq connection URL.
func (p Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.DB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type Config struct {
	TCPHost      string        `yaml:"tcp_host"`
	TCPPort      string        `yaml:"tcp_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxPayload   uint32        `yaml:"max_payload"`
	MetricsPort  string        `yaml:"metrics_port"`
	LogLevel     string        `yaml:"log_level"`
	HexDumpDebug bool          `yaml:"hex_dump_debug"`
	DumpDir      string        `yaml:"dump_dir"`

	IngestMode     string        `yaml:"ingest_mode"`
	APIBase        string        `yaml:"api_base"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	GRPCServer     string        `yaml:"grpc_server"`

	FallbackDriver string   `yaml:"fallback_driver"`
	Postgres       Postgres `yaml:"postgres"`
	SQLitePath     string   `yaml:"sqlite_path"`
	MongoURI       string   `yaml:"mongo_uri"`
	MongoDB        string   `yaml:"mongo_db"`

	// RedisAddr vacío desactiva el estado de dispositivo.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	LiveFeed     string `yaml:"live_feed"`
	RedisChannel string `yaml:"redis_channel"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	LinkAddr     string `yaml:"link_addr"`
}

func Defaults() Config {
	return Config{
		TCPHost:      "0.0.0.0",
		TCPPort:      "5027",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxPayload:   64 << 10,
		MetricsPort:  "9000",
		LogLevel:     "info",
		DumpDir:      "logs",

		IngestMode:     IngestHTTP,
		APIBase:        "http://api:8000",
		RequestTimeout: 5 * time.Second,
		GRPCServer:     "localhost:50051",

		FallbackDriver: FallbackPostgres,
		Postgres: Postgres{
			Host:     "postgres",
			Port:     "5432",
			DB:       "quantumfleet",
			User:     "quantum",
		},
		SQLitePath: "avl-fallback.db",
		MongoURI:   "mongodb://localhost:27017",
		MongoDB:    "avl",

		LiveFeed:     FeedNone,
		RedisChannel: "realtime",
		MQTTBroker:   "tcp://localhost:1883",
		MQTTTopic:    "avl/records",
		MQTTClientID: "avl-svr",
		LinkAddr:     "localhost:7000",
	}
}

// Load resolves defaults, then CONFIG_FILE (YAML), then .env and the
// process environment.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.TCPHost = getEnv("TCP_HOST", c.TCPHost)
	c.TCPPort = getEnv("TCP_PORT", c.TCPPort)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DumpDir = getEnv("DUMP_DIR", c.DumpDir)
	c.IngestMode = strings.ToLower(getEnv("INGEST_MODE", c.IngestMode))
	c.APIBase = getEnv("API_BASE", c.APIBase)
	c.GRPCServer = getEnv("GRPC_SERVER", c.GRPCServer)
	c.FallbackDriver = strings.ToLower(getEnv("FALLBACK_DRIVER", c.FallbackDriver))
	c.Postgres.Host = getEnv("POSTGRES_HOST", c.Postgres.Host)
	c.Postgres.Port = getEnv("POSTGRES_PORT", c.Postgres.Port)
	c.Postgres.DB = getEnv("POSTGRES_DB", c.Postgres.DB)
	c.Postgres.User = getEnv("POSTGRES_USER", c.Postgres.User)
	c.Postgres.Password = getEnv("POSTGRES_PASSWORD", c.Postgres.Password)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDB = getEnv("MONGO_DB", c.MongoDB)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.LiveFeed = strings.ToLower(getEnv("LIVE_FEED", c.LiveFeed))
	c.RedisChannel = getEnv("REDIS_CHANNEL", c.RedisChannel)
	c.MQTTBroker = getEnv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTTopic = getEnv("MQTT_TOPIC", c.MQTTTopic)
	c.MQTTClientID = getEnv("MQTT_CLIENT_ID", c.MQTTClientID)
	c.LinkAddr = getEnv("LINK_ADDR", c.LinkAddr)

	var err error
	if c.ReadTimeout, err = getDuration("READ_TIMEOUT", c.ReadTimeout); err != nil {
		return err
	}
	if c.WriteTimeout, err = getDuration("WRITE_TIMEOUT", c.WriteTimeout); err != nil {
		return err
	}
	if c.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.HexDumpDebug, err = getBool("HEX_DUMP_DEBUG", c.HexDumpDebug); err != nil {
		return err
	}
	if c.RedisDB, err = getInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	maxPayload, err := getInt("MAX_PAYLOAD", int(c.MaxPayload))
	if err != nil {
		return err
	}
	if maxPayload <= 0 {
		return fmt.Errorf("%w: MAX_PAYLOAD=%d", ErrInvalid, maxPayload)
	}
	c.MaxPayload = uint32(maxPayload)
	return nil
}

func (c Config) Validate() error {
	switch c.IngestMode {
	case IngestHTTP, IngestGRPC:
	default:
		return fmt.Errorf("%w: ingest mode %q", ErrInvalid, c.IngestMode)
	}
	switch c.FallbackDriver {
	case FallbackPostgres, FallbackSQLite, FallbackMongo, FallbackNone:
	default:
		return fmt.Errorf("%w: fallback driver %q", ErrInvalid, c.FallbackDriver)
	}
	switch c.LiveFeed {
	case FeedNone, FeedRedis, FeedMQTT, FeedNDJSON:
	default:
		return fmt.Errorf("%w: live feed %q", ErrInvalid, c.LiveFeed)
	}
	if c.LiveFeed == FeedRedis && c.RedisAddr == "" {
		return fmt.Errorf("%w: live feed redis needs REDIS_ADDR", ErrInvalid)
	}
	if c.ReadTimeout <= 0 || c.RequestTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if c.IngestMode == IngestHTTP {
		if _, err := url.ParseRequestURI(c.IngestURL()); err != nil {
			return fmt.Errorf("%w: API_BASE: %v", ErrInvalid, err)
		}
	}
	return nil
}

func (c Config) TCPAddr() string { return net.JoinHostPort(c.TCPHost, c.TCPPort) }

func (c Config) IngestURL() string {
	return strings.TrimRight(c.APIBase, "/") + "/ingest/teltonika/ingest"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getDuration accepts plain seconds ("15", "2.5") or a Go duration ("15s").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalid, key, val)
	}
	return d, nil
}

// getBool: 1/true/yes/on enable, 0/false/no/off disable.
func getBool(key string, fallback bool) (bool, error) {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return fallback, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s=%q", ErrInvalid, key, val)
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalid, key, val)
	}
	return n, nil
}
