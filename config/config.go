package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed into each component; there
// is no process-wide mutable configuration.
type Config struct {
	Host     string
	HTTPPort int

	// SerialDevice is the controller board's serial device path.
	SerialDevice string

	// Simulate replaces the serial port with a simulated one.
	Simulate bool

	// AttackLogDir receives one outcome log file per attack run.
	// Empty disables run logging.
	AttackLogDir string

	// WebDir holds the static web interface assets.
	WebDir string

	LogLevel string
}

// Load reads configuration from a .env file, if present, and the
// environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Host:         getEnv("EMFI_HOST", "localhost"),
		HTTPPort:     getEnvInt("EMFI_PORT", 9118),
		SerialDevice: getEnv("EMFI_SERIAL", "/dev/ttyACM0"),
		Simulate:     getEnvBool("EMFI_SIMULATE", false),
		AttackLogDir: getEnv("EMFI_ATTACK_LOG_DIR", ""),
		WebDir:       getEnv("EMFI_WEB_DIR", "./web"),
		LogLevel:     getEnv("EMFI_LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
