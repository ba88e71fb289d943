package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultParamPrefix = "/answer-engine"
	exaTokenParam      = "/exa-token"
	openAITokenParam   = "/open-ai-token"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	ParamPrefix string `env:"PARAM_PREFIX"`

	// LogFile, when set, receives a rotated copy of the JSON log.
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100" validate:"min=1"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3" validate:"min=0"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28" validate:"min=0"`

	ExaBaseURL     string `env:"EXA_BASE_URL" validate:"omitempty,url"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	OpenAIModel    string `env:"OPENAI_MODEL" envDefault:"gpt-4o" validate:"required"`
	MaxQueryLength int    `env:"MAX_QUERY_LENGTH" envDefault:"500" validate:"min=1"`
	NumResults     int    `env:"NUM_RESULTS" envDefault:"10" validate:"min=1,max=100"`
	TopK           int    `env:"TOP_K" envDefault:"5" validate:"min=1,ltefield=NumResults"`

	RevealDelayMS         int `env:"REVEAL_DELAY_MS" envDefault:"50" validate:"min=0"`
	GatewayTimeoutSeconds int `env:"GATEWAY_TIMEOUT_SECONDS" envDefault:"30" validate:"min=1"`
	SessionTTLMinutes     int `env:"SESSION_TTL_MINUTES" envDefault:"30" validate:"min=1"`

	LambdaFunction string `env:"AWS_LAMBDA_FUNCTION_NAME"`

	// Derived after parsing.
	UseParamStore  bool
	InLambda       bool
	RevealDelay    time.Duration
	GatewayTimeout time.Duration
	SessionTTL     time.Duration
}

// Load reads the configuration from the environment, filling unset
// variables from ./.env when that file exists.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv file. Variables already present
// in the environment win over the file.
func LoadFrom(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid: %w", err)
	}

	prefix := strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	cfg.UseParamStore = prefix != ""
	cfg.ParamPrefix = orDefault(prefix, DefaultParamPrefix)
	cfg.InLambda = cfg.LambdaFunction != "" || os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
	cfg.RevealDelay = time.Duration(cfg.RevealDelayMS) * time.Millisecond
	cfg.GatewayTimeout = time.Duration(cfg.GatewayTimeoutSeconds) * time.Second
	cfg.SessionTTL = time.Duration(cfg.SessionTTLMinutes) * time.Minute
	return cfg, nil
}

// ExaTokenParam is the parameter holding the search provider API key.
func (c Config) ExaTokenParam() string { return c.ParamPrefix + exaTokenParam }

// OpenAITokenParam is the parameter holding the completion provider API key.
func (c Config) OpenAITokenParam() string { return c.ParamPrefix + openAITokenParam }

// EnvTokenVars maps the token parameters to the environment variables used
// when the parameter store is not configured.
func (c Config) EnvTokenVars() map[string]string {
	return map[string]string{
		c.ExaTokenParam():    "EXA_API_KEY",
		c.OpenAITokenParam(): "OPENAI_API_KEY",
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
