package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobscan/internal/compress"
	"github.com/spigell/jobscan/internal/extract"
	"github.com/spigell/jobscan/internal/match"
	"github.com/spigell/jobscan/internal/pipeline"
	"github.com/spigell/jobscan/internal/quota"
)

const (
	app = "jobscan"
)

type Config struct {
	Identity   string            `mapstructure:"identity"`
	Quota      *QuotaConfig      `mapstructure:"quota"`
	Extraction *ExtractionConfig `mapstructure:"extraction"`
	Scoring    *ScoringConfig    `mapstructure:"scoring"`
	AI         *AIConfig         `mapstructure:"ai"`
	Store      *StoreConfig      `mapstructure:"store"`
}

type QuotaConfig struct {
	General quota.Limit `mapstructure:"general"`
	LLM     quota.Limit `mapstructure:"llm"`
}

type ExtractionConfig struct {
	PolitenessDelay    time.Duration   `mapstructure:"politeness-delay"`
	HTTPTimeout        time.Duration   `mapstructure:"http-timeout"`
	UserAgent          string          `mapstructure:"user-agent"`
	StaticMinChars     int             `mapstructure:"static-min-chars"`
	HeadlessMinChars   int             `mapstructure:"headless-min-chars"`
	APIMinChars        int             `mapstructure:"api-min-chars"`
	Headless           *HeadlessConfig `mapstructure:"headless"`
	APIDiscovery       bool            `mapstructure:"api-discovery"`
	MaxDiscoveredLinks int             `mapstructure:"max-discovered-links"`
}

type HeadlessConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Settle   time.Duration `mapstructure:"settle"`
	ExecPath string        `mapstructure:"exec-path"`
}

type ScoringConfig struct {
	Threshold     float64          `mapstructure:"threshold"`
	MaxResults    int              `mapstructure:"max-results"`
	Compression   compress.Options `mapstructure:"compression"`
	match.Options `mapstructure:",squash"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	var errs []error
	if c.Scoring.Threshold < 0 || c.Scoring.Threshold > 1 {
		errs = append(errs, fmt.Errorf("scoring.threshold must be between 0 and 1, got %v", c.Scoring.Threshold))
	}
	if c.Scoring.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("scoring.max-results must not be negative, got %d", c.Scoring.MaxResults))
	}
	for _, q := range []struct {
		name  string
		limit quota.Limit
	}{{"quota.general", c.Quota.General}, {"quota.llm", c.Quota.LLM}} {
		if q.limit.MaxCalls <= 0 {
			errs = append(errs, fmt.Errorf("%s.max-calls must be positive", q.name))
		}
		if q.limit.Window <= 0 {
			errs = append(errs, fmt.Errorf("%s.window must be positive", q.name))
		}
	}
	if c.Extraction.PolitenessDelay < 0 {
		errs = append(errs, errors.New("extraction.politeness-delay must not be negative"))
	}
	if p := strings.ToLower(strings.TrimSpace(c.AI.Provider)); p != "" && p != "gemini" {
		errs = append(errs, fmt.Errorf("unsupported ai provider: %s", c.AI.Provider))
	}
	if c.Scoring.Retry.Jitter < 0 || c.Scoring.Retry.Jitter > 1 {
		errs = append(errs, fmt.Errorf("scoring.retry.jitter must be between 0 and 1, got %v", c.Scoring.Retry.Jitter))
	}

	return errors.Join(errs...)
}

func defaultConfig() *Config {
	scoring := match.DefaultOptions()
	return &Config{
		Identity: pipeline.DefaultIdentity,
		Quota: &QuotaConfig{
			General: quota.Limit{MaxCalls: 100, Window: time.Hour},
			LLM:     quota.Limit{MaxCalls: 20, Window: time.Hour},
		},
		Extraction: &ExtractionConfig{
			PolitenessDelay:  pipeline.DefaultPoliteness,
			HTTPTimeout:      15 * time.Second,
			StaticMinChars:   extract.DefaultStaticMinChars,
			HeadlessMinChars: extract.DefaultHeadlessMinChars,
			APIMinChars:      extract.DefaultAPIMinChars,
			Headless: &HeadlessConfig{
				Enabled: true,
				Timeout: 45 * time.Second,
				Settle:  5 * time.Second,
			},
			APIDiscovery:       true,
			MaxDiscoveredLinks: extract.DefaultMaxLinks,
		},
		Scoring: &ScoringConfig{
			Threshold:   0.7,
			MaxResults:  10,
			Compression: compress.DefaultOptions(),
			Options:     scoring,
		},
		AI: &AIConfig{
			Provider: "gemini",
			Gemini:   &GeminiConfig{Model: "gemini-2.5-flash", MaxLogLength: 200},
		},
		Store: &StoreConfig{},
	}
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobscan extracts job postings from any site and scores them against a candidate profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"ai.gemini.api-key":      "GEMINI_API_KEY",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"identity":               "JOBSCAN_IDENTITY",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobscan.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// version needs no config
	if versionCmd.CalledAs() != "" {
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine, a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := defaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.Scoring.LLMQuota = config.Quota.LLM
	return config, nil
}
