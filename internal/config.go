package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=5000"`
	GrpcPort  int    `env:"GRPC_PORT,default=5001"`
	DebugPort int    `env:"DEBUG_PORT,default=5002"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	EnforceOneSessionPerAddress bool `env:"ENFORCE_ONE_SESSION_PER_ADDRESS,default=false"`
	ConnectionBufferSize        int  `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxPayloadBytes             int  `env:"MAX_PAYLOAD_BYTES,default=26214400"`

	CensoredDir     string `env:"CENSORED_DIR"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=1m"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT,default=60s"`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GrpcAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GrpcPort)
}

func (c Config) DebugAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.DebugPort)
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
