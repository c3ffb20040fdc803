package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

// Settings holds the runtime configuration resolved from flags, environment,
// .env files, the config file and the keyring.
type Settings struct {
	APIURL      string        `validate:"omitempty,url"`
	Token       string
	VCardPath   string        `validate:"required"`
	Language    string        `validate:"required"`
	Output      string        `validate:"oneof=text json yaml"`
	Port        string        `validate:"required"`
	Concurrency int           `validate:"gte=0"`
	Timeout     time.Duration `validate:"gt=0"`
	Interval    time.Duration `validate:"gt=0"`

	// ConfigFile is the config file actually read, if any.
	ConfigFile string
}

// Load resolves the settings in order of precedence:
// 1. Flags bound into v
// 2. Environment variables (CONTACTSYNC_*)
// 3. .env.local then .env
// 4. Config file ($HOME/.go-contactsync.yaml or --config)
// 5. Defaults
//
// The API token falls back to the system keyring when no other source sets it.
func Load(v *viper.Viper) (*Settings, error) {
	loadEnvFiles()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyVCardPath, defaultVCardPath())
	v.SetDefault(KeyLanguage, DefaultLanguage)
	v.SetDefault(KeyOutput, OutputText)
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyConcurrency, DefaultConcurrency)
	v.SetDefault(KeyTimeout, DefaultBatchTimeout)
	v.SetDefault(KeyInterval, DefaultServeInterval)

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType(ConfigFileType)
		v.SetConfigName(ConfigFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s: %w", ErrConfigRead, err)
		}
	} else {
		slog.Debug(MsgConfigFile,
			LogKeyComponent, CompConfig,
			LogKeyFile, v.ConfigFileUsed())
	}

	s := &Settings{
		APIURL:      v.GetString(KeyAPIURL),
		Token:       v.GetString(KeyToken),
		VCardPath:   v.GetString(KeyVCardPath),
		Language:    v.GetString(KeyLanguage),
		Output:      v.GetString(KeyOutput),
		Port:        v.GetString(KeyPort),
		Concurrency: v.GetInt(KeyConcurrency),
		Timeout:     v.GetDuration(KeyTimeout),
		Interval:    v.GetDuration(KeyInterval),
		ConfigFile:  v.ConfigFileUsed(),
	}

	if s.Token == "" {
		s.Token = tokenFromKeyring()
	}

	return s, nil
}

// Validate checks the settings shape and the server port.
func (s *Settings) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(s); err != nil {
		return fmt.Errorf("%s: %w", ErrSettings, err)
	}
	return ValidatePort(s.Port)
}

// ValidatePort checks that port is a number within the TCP range.
func ValidatePort(port string) error {
	if port == "" {
		return errors.New(ErrPortRequired)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return errors.New(ErrPortNumber)
	}
	if n < MinPort || n > MaxPort {
		return errors.New(ErrPortRange)
	}
	return nil
}

// StoreToken saves the API token in the system keyring.
func StoreToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New(ErrTokenEmpty)
	}
	if err := keyring.Set(KeyringService, KeyringUser, token); err != nil {
		return fmt.Errorf("%s: %w", ErrKeyringStore, err)
	}
	return nil
}

func tokenFromKeyring() string {
	token, err := keyring.Get(KeyringService, KeyringUser)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug(MsgPassFail,
				LogKeyComponent, CompConfig,
				LogKeyError, err)
		}
		return ""
	}
	return token
}

// loadEnvFiles loads variables from .env files. Missing files are ignored.
func loadEnvFiles() {
	for _, envFile := range EnvFiles {
		_ = godotenv.Load(envFile)
	}
}

func defaultVCardPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultVCardFile
	}
	return filepath.Join(dir, DataDirName, DefaultVCardFile)
}
