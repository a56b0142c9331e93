package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Source string

const (
	SourceGateway Source = "gateway"
	SourceAlpaca  Source = "alpaca"
)

type Config struct {
	Source         Source        `yaml:"source"`
	Symbols        []string      `yaml:"symbols"`
	Symbol         string        `yaml:"symbol"`
	GatewayURL     string        `yaml:"gateway_url"`
	FeedPath       string        `yaml:"feed_path"`
	Topic          string        `yaml:"topic"`
	SentimentURL   string        `yaml:"sentiment_url"`
	ListenAddr     string        `yaml:"listen"`
	BufferSize     int           `yaml:"buffer_size"`
	AnomalyWindow  time.Duration `yaml:"anomaly_window"`
	HistoryTimeout time.Duration `yaml:"history_timeout"`
	ReportInterval time.Duration `yaml:"report_interval"`
	JournalPath    string        `yaml:"journal_path"`
	NATSURL        string        `yaml:"nats_url"`
	NATSSubject    string        `yaml:"nats_subject"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	APIKey         string        `yaml:"api_key"`
	APISecret      string        `yaml:"api_secret"`
}

func Defaults() Config {
	return Config{
		Source:         SourceGateway,
		Symbols:        []string{"BTC-USD", "ETH-USD", "SOL-USD"},
		GatewayURL:     "http://localhost:8080",
		FeedPath:       "/ws-market/websocket",
		Topic:          "/topic/prices",
		SentimentURL:   "https://api.alternative.me/fng/?limit=1",
		ListenAddr:     ":8090",
		BufferSize:     50,
		AnomalyWindow:  2 * time.Second,
		HistoryTimeout: 5 * time.Second,
		ReportInterval: 30 * time.Second,
		NATSSubject:    "pricedash",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load resolves configuration from, lowest precedence first: built-in
// defaults, the YAML file named by --config, the environment (a .env file
// fills in unset variables) and command-line flags.
func Load() (Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(".env"); err != nil {
		return cfg, err
	}

	if path := configPathFromArgs(os.Args[1:]); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	var source, symbols string
	flag.String("config", "", "path to a YAML config file")
	flag.StringVar(&source, "source", string(cfg.Source), "price source: gateway or alpaca")
	flag.StringVar(&symbols, "symbols", strings.Join(cfg.Symbols, ","), "comma separated tracked symbols")
	flag.StringVar(&cfg.Symbol, "symbol", cfg.Symbol, "initially displayed symbol (default first tracked)")
	flag.StringVar(&cfg.GatewayURL, "gateway-url", cfg.GatewayURL, "market gateway base URL")
	flag.StringVar(&cfg.FeedPath, "feed-path", cfg.FeedPath, "gateway websocket endpoint path")
	flag.StringVar(&cfg.Topic, "topic", cfg.Topic, "STOMP topic carrying price updates")
	flag.StringVar(&cfg.SentimentURL, "sentiment-url", cfg.SentimentURL, "fear and greed index URL")
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	flag.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "chart samples kept for the displayed symbol")
	flag.DurationVar(&cfg.AnomalyWindow, "anomaly-window", cfg.AnomalyWindow, "how long an anomaly badge stays up")
	flag.DurationVar(&cfg.HistoryTimeout, "history-timeout", cfg.HistoryTimeout, "history request timeout")
	flag.DurationVar(&cfg.ReportInterval, "report-interval", cfg.ReportInterval, "account valuation log interval")
	flag.StringVar(&cfg.JournalPath, "journal-path", cfg.JournalPath, "trade journal file, empty disables")
	flag.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server for event publishing, empty disables")
	flag.StringVar(&cfg.NATSSubject, "nats-subject", cfg.NATSSubject, "NATS subject prefix")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	flag.Parse()

	cfg.Source = Source(source)
	cfg.Symbols = splitSymbols(symbols)
	normalize(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configPathFromArgs finds --config before the flag set is parsed, since the
// file's values become the flag defaults.
func configPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if value, ok := strings.CutPrefix(name, "config="); ok {
			return value
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("PRICEDASH_CONFIG")
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv sets variables from path that are not already in the
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	var source string
	str("PRICEDASH_SOURCE", &source)
	if source != "" {
		cfg.Source = Source(source)
	}
	if v := os.Getenv("PRICEDASH_SYMBOLS"); v != "" {
		cfg.Symbols = splitSymbols(v)
	}
	str("PRICEDASH_SYMBOL", &cfg.Symbol)
	str("PRICEDASH_GATEWAY_URL", &cfg.GatewayURL)
	str("PRICEDASH_FEED_PATH", &cfg.FeedPath)
	str("PRICEDASH_TOPIC", &cfg.Topic)
	str("PRICEDASH_SENTIMENT_URL", &cfg.SentimentURL)
	str("PRICEDASH_LISTEN", &cfg.ListenAddr)
	str("PRICEDASH_JOURNAL_PATH", &cfg.JournalPath)
	str("NATS_URL", &cfg.NATSURL)
	str("PRICEDASH_NATS_SUBJECT", &cfg.NATSSubject)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("APCA_API_KEY_ID", &cfg.APIKey)
	str("APCA_API_SECRET_KEY", &cfg.APISecret)

	if v := os.Getenv("PRICEDASH_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRICEDASH_BUFFER_SIZE: %w", err)
		}
		cfg.BufferSize = n
	}
	for key, dst := range map[string]*time.Duration{
		"PRICEDASH_ANOMALY_WINDOW":  &cfg.AnomalyWindow,
		"PRICEDASH_HISTORY_TIMEOUT": &cfg.HistoryTimeout,
		"PRICEDASH_REPORT_INTERVAL": &cfg.ReportInterval,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalize(cfg *Config) {
	seen := make(map[string]bool, len(cfg.Symbols))
	symbols := cfg.Symbols[:0:0]
	for _, s := range cfg.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	cfg.Symbols = symbols
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if cfg.Symbol == "" && len(cfg.Symbols) > 0 {
		cfg.Symbol = cfg.Symbols[0]
	}
}

func validate(cfg Config) error {
	if cfg.Source != SourceGateway && cfg.Source != SourceAlpaca {
		return fmt.Errorf("invalid source: %s", cfg.Source)
	}
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	found := false
	for _, s := range cfg.Symbols {
		if s == cfg.Symbol {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("symbol %s is not in the tracked symbols", cfg.Symbol)
	}
	if cfg.Source == SourceGateway && cfg.GatewayURL == "" {
		return fmt.Errorf("gateway-url is required for the gateway source")
	}
	if cfg.Source == SourceAlpaca && (cfg.APIKey == "" || cfg.APISecret == "") {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for the alpaca source")
	}
	if cfg.BufferSize <= 0 {
		return fmt.Errorf("buffer-size must be > 0")
	}
	if cfg.AnomalyWindow <= 0 {
		return fmt.Errorf("anomaly-window must be > 0")
	}
	if cfg.HistoryTimeout <= 0 {
		return fmt.Errorf("history-timeout must be > 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be > 0")
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}
