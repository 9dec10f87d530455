package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Search   SearchConfig
	Resolver ResolverConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	Provider      string
	Model         string
	ResearchModel string
	APIKey        string
	Temperature   float32
	MaxTokens     int
	TimeoutSec    int
}

type SearchConfig struct {
	SerpAPIKey    string
	MaxCandidates int
	TimeoutSec    int
}

type ResolverConfig struct {
	AcceptanceThreshold int
	ValidationWeight    float64
	JudgeWeight         float64
	TierTimeoutSec      int
	ValidatorTimeoutSec int
	JudgeTimeoutSec     int
	BudgetSec           int
	ClaimTTLSec         int
	ClaimWaitSec        int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (r ResolverConfig) TierTimeout() time.Duration      { return secs(r.TierTimeoutSec, 20) }
func (r ResolverConfig) ValidatorTimeout() time.Duration { return secs(r.ValidatorTimeoutSec, 10) }
func (r ResolverConfig) JudgeTimeout() time.Duration     { return secs(r.JudgeTimeoutSec, 30) }
func (r ResolverConfig) Budget() time.Duration           { return secs(r.BudgetSec, 90) }
func (r ResolverConfig) ClaimTTL() time.Duration         { return secs(r.ClaimTTLSec, 90) }
func (r ResolverConfig) ClaimWait() time.Duration        { return secs(r.ClaimWaitSec, 30) }

func secs(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/manual-hunter")

	viper.SetEnvPrefix("MANUAL_HUNTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/manualhunter.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.researchModel", "gpt-4o")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.maxTokens", 512)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("search.maxCandidates", 5)
	viper.SetDefault("search.timeoutSec", 10)

	viper.SetDefault("resolver.acceptanceThreshold", 60)
	viper.SetDefault("resolver.validationWeight", 0.4)
	viper.SetDefault("resolver.judgeWeight", 0.6)
	viper.SetDefault("resolver.tierTimeoutSec", 20)
	viper.SetDefault("resolver.validatorTimeoutSec", 10)
	viper.SetDefault("resolver.judgeTimeoutSec", 30)
	viper.SetDefault("resolver.budgetSec", 90)
	viper.SetDefault("resolver.claimTTLSec", 90)
	viper.SetDefault("resolver.claimWaitSec", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
