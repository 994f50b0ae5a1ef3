package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Vector    VectorConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type StorageConfig struct {
	// BasePath holds one subdirectory per indexed collection.
	BasePath   string
	UploadDir  string
	SQLitePath string
}

type VectorConfig struct {
	// Backend selects the dense index implementation: "local" or "milvus".
	Backend string
	Dim     int
	Milvus  MilvusConfig
}

type MilvusConfig struct {
	Endpoint string
	APIKey   string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
}

type RetrievalConfig struct {
	TopKDense              int
	FinalK                 int
	LowConfidenceThreshold float64
	CollectionTimeout      time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/unimate")

	viper.SetEnvPrefix("UNIMATE")
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
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 52428800)

	viper.SetDefault("storage.basePath", "./data/collections")
	viper.SetDefault("storage.uploadDir", "./data/uploads")
	viper.SetDefault("storage.sqlitePath", "./data/unimate.db")

	viper.SetDefault("vector.backend", "local")
	viper.SetDefault("vector.dim", 1536)
	viper.SetDefault("vector.milvus.endpoint", "localhost:19530")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "24h")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 700)
	viper.SetDefault("llm.timeoutSec", 60)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")

	viper.SetDefault("retrieval.topKDense", 20)
	viper.SetDefault("retrieval.finalK", 5)
	viper.SetDefault("retrieval.lowConfidenceThreshold", 0.35)
	viper.SetDefault("retrieval.collectionTimeout", "10s")

	viper.SetDefault("ratelimit.requestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
