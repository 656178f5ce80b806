package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH"`
	DirectoryFilepath    string        `env:"DIRECTORY_FILEPATH"`
	OpenAIAPIKey         string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL        string        `env:"OPENAI_BASE_URL"`
	OpenAIModel          string        `env:"OPENAI_MODEL"`
	AssistantTimeout     time.Duration `env:"ASSISTANT_TIMEOUT,default=10s"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	MaxAttachmentSize    int           `env:"MAX_ATTACHMENT_SIZE,default=5242880"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=80"`
}

// LoadConfig reads the process environment. godotenv has already merged
// any .env file into it.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if config.Port <= 0 || config.Port > 65535 {
		return Config{}, fmt.Errorf("config error: PORT out of range: %d", config.Port)
	}
	if config.MaxAttachmentSize <= 0 {
		return Config{}, fmt.Errorf("config error: MAX_ATTACHMENT_SIZE must be positive")
	}
	if config.BufferSize <= 0 || config.ConnectionBufferSize <= 0 {
		return Config{}, fmt.Errorf("config error: buffer sizes must be positive")
	}
	if config.LowCapacityThreshold <= 0 || config.LowCapacityThreshold > 100 {
		return Config{}, fmt.Errorf("config error: LOW_CAPACITY_THRESHOLD must be a percentage")
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
