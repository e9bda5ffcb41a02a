package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all settings for the DHW processing commands, populated from
// environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Source grid and per-pixel products.
	Variable    string
	MaskIndex   int
	Thresholds  []float64
	Quantile    float64
	QuantileCap float64
	Products    []string

	// Optional per-pixel inputs.
	ClimatologyFile     string
	ClimatologyVariable string
	ClimatologyFlipLat  bool
	SSTVariable         string
	PixelMaskFile       string
	PixelMaskVariable   string

	// Output.
	OutputDir    string
	OutputPrefix string
	Compress     bool
	Workers      int
	Progress     bool

	// Ensemble.
	Scenario           string
	YearStart          int
	YearEnd            int
	EnsembleMinMembers int
	EnsembleOpenFiles  int

	// Regions.
	RegionsShapefile   string
	RegionNameField    string
	RegionAcronymField string
	RegionPrefix       string
	SummaryVariable    string
	SummaryQuantiles   []float64
	TrendStatistic     string
	WriteClipped       bool

	// Sinks.
	SQLitePath        string
	KafkaBrokers      []string
	KafkaSummaryTopic string
	MetricsTextfile   string

	// Dataset attributes.
	Title       string
	Author      string
	AuthorEmail string
	Citation    string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		Variable: sharedcfg.EnvOrDefault("DHW_VARIABLE", "DHW"),
		Products: parseList(sharedcfg.EnvOrDefault("PRODUCTS", "max,quantile,doy,ndays")),

		ClimatologyFile:     os.Getenv("CLIMATOLOGY_FILE"),
		ClimatologyVariable: sharedcfg.EnvOrDefault("CLIMATOLOGY_VARIABLE", "SSTmin_doy"),
		SSTVariable:         sharedcfg.EnvOrDefault("SST_VARIABLE", "tos"),
		PixelMaskFile:       os.Getenv("PIXEL_MASK_FILE"),
		PixelMaskVariable:   sharedcfg.EnvOrDefault("PIXEL_MASK_VARIABLE", "pixel_mask"),

		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		OutputPrefix: sharedcfg.EnvOrDefault("OUTPUT_PREFIX", "DHW_"),

		Scenario: os.Getenv("SCENARIO"),

		RegionsShapefile:   os.Getenv("REGIONS_SHAPEFILE"),
		RegionNameField:    sharedcfg.EnvOrDefault("REGION_NAME_FIELD", "Name"),
		RegionAcronymField: sharedcfg.EnvOrDefault("REGION_ACRONYM_FIELD", "Acronym"),
		RegionPrefix:       sharedcfg.EnvOrDefault("REGION_PREFIX", "IPCC-"),
		SummaryVariable:    sharedcfg.EnvOrDefault("SUMMARY_VARIABLE", "DHW_max"),
		TrendStatistic:     sharedcfg.EnvOrDefault("TREND_STATISTIC", "mean"),

		SQLitePath:        os.Getenv("SQLITE_PATH"),
		KafkaBrokers:      sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSummaryTopic: sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "dhw-region-summaries"),
		MetricsTextfile:   os.Getenv("METRICS_TEXTFILE"),

		Title:       os.Getenv("TITLE"),
		Author:      os.Getenv("AUTHOR_NAME"),
		AuthorEmail: os.Getenv("AUTHOR_EMAIL"),
		Citation:    os.Getenv("CITATION"),
	}

	if cfg.MaskIndex, err = parseInt("MASK_INDEX", 1, 0); err != nil {
		return nil, err
	}
	if cfg.Workers, err = parseInt("WORKERS", runtime.NumCPU(), 1); err != nil {
		return nil, err
	}
	if cfg.YearStart, err = parseInt("YEAR_START", 1985, 0); err != nil {
		return nil, err
	}
	if cfg.YearEnd, err = parseInt("YEAR_END", 2100, 0); err != nil {
		return nil, err
	}
	if cfg.EnsembleMinMembers, err = parseInt("ENSEMBLE_MIN_MEMBERS", 0, 0); err != nil {
		return nil, err
	}
	if cfg.EnsembleOpenFiles, err = parseInt("ENSEMBLE_OPEN_FILES", 8, 1); err != nil {
		return nil, err
	}
	if cfg.Thresholds, err = parseFloatList("THRESHOLDS", "4,8"); err != nil {
		return nil, err
	}
	if cfg.SummaryQuantiles, err = parseFloatList("SUMMARY_QUANTILES", "0.01,0.05,0.95"); err != nil {
		return nil, err
	}
	if cfg.Quantile, err = parseFloat("QUANTILE", 0.99); err != nil {
		return nil, err
	}
	if cfg.QuantileCap, err = parseFloat("CROSSING_QUANTILE_CAP", 0); err != nil {
		return nil, err
	}
	if cfg.Compress, err = parseBool("COMPRESS", true); err != nil {
		return nil, err
	}
	if cfg.Progress, err = parseBool("PROGRESS", false); err != nil {
		return nil, err
	}
	if cfg.ClimatologyFlipLat, err = parseBool("CLIMATOLOGY_FLIP_LAT", false); err != nil {
		return nil, err
	}
	if cfg.WriteClipped, err = parseBool("WRITE_CLIPPED", true); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Variable == "" {
		return errors.New("DHW_VARIABLE is required")
	}
	if len(c.Products) == 0 {
		return errors.New("PRODUCTS is required")
	}
	if c.Quantile < 0 || c.Quantile > 1 {
		return errors.New("invalid QUANTILE: must be within [0, 1]")
	}
	if c.QuantileCap < 0 || c.QuantileCap > 1 {
		return errors.New("invalid CROSSING_QUANTILE_CAP: must be within [0, 1]")
	}
	for _, q := range c.SummaryQuantiles {
		if q < 0 || q > 1 {
			return errors.New("invalid SUMMARY_QUANTILES: values must be within [0, 1]")
		}
	}
	if c.YearStart > c.YearEnd {
		return errors.New("invalid YEAR_START: must not be after YEAR_END")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaSummaryTopic == "" {
		return errors.New("KAFKA_SUMMARY_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// KafkaEnabled reports whether region summaries are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(key string, fallback, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not a number", key, s)
	}
	return v, nil
}

func parseFloatList(key, fallback string) ([]float64, error) {
	items := parseList(sharedcfg.EnvOrDefault(key, fallback))
	out := make([]float64, 0, len(items))
	for _, item := range items {
		v, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q is not a number", key, item)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}
