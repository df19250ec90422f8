package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	AppOrigin               string `mapstructure:"app_origin"`
	SocketPath              string `mapstructure:"socket_path"`
	PushURL                 string `mapstructure:"push_url"`
	PushToken               string `mapstructure:"push_token"`
	StatePath               string `mapstructure:"state_path"`
	DefaultIcon             string `mapstructure:"default_icon"`
	DefaultBadge            string `mapstructure:"default_badge"`
	OpenCommand             string `mapstructure:"open_command"`
	PermissionPromptDelayMs int    `mapstructure:"permission_prompt_delay_ms"`
	LogLevel                string `mapstructure:"log_level"`
	LogFormat               string `mapstructure:"log_format"`
}

func Default() *Config {
	return &Config{
		AppOrigin:               "http://localhost:5173",
		SocketPath:              filepath.Join(runDir(), "agent.sock"),
		StatePath:               filepath.Join(configDir(), "state.db"),
		DefaultIcon:             "/icons/android/android-launchericon-192-192.png",
		DefaultBadge:            "/icons/android/android-launchericon-96-96.png",
		OpenCommand:             "xdg-open",
		PermissionPromptDelayMs: 2000,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ACU")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("app_origin", cfg.AppOrigin)
	viper.Set("socket_path", cfg.SocketPath)
	viper.Set("push_url", cfg.PushURL)
	viper.Set("push_token", cfg.PushToken)
	viper.Set("state_path", cfg.StatePath)
	viper.Set("default_icon", cfg.DefaultIcon)
	viper.Set("default_badge", cfg.DefaultBadge)
	viper.Set("open_command", cfg.OpenCommand)
	viper.Set("permission_prompt_delay_ms", cfg.PermissionPromptDelayMs)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "agent.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains push token)
	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "AcuPreview")
	case "darwin":
		return "/Library/Application Support/AcuPreview"
	default:
		return "/etc/acu-preview"
	}
}

func runDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "AcuPreview")
	case "darwin":
		return "/Library/Application Support/AcuPreview"
	default:
		return "/run/acu-preview"
	}
}
