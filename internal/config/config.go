package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mfareport/cli/internal/utils"
)

// EnvPrefix is the prefix for environment overrides, e.g. MFAREPORT_PLATFORM_PASSWORD
const EnvPrefix = "MFAREPORT"

// DefaultFileName is the config file name searched for when --config is not given
const DefaultFileName = "mfareport"

// Config represents the application configuration
type Config struct {
	Platform PlatformConfig `mapstructure:"platform" yaml:"platform"`
	SMTP     SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Format   FormatConfig   `mapstructure:"format" yaml:"format"`
}

// PlatformConfig contains the security platform API settings
type PlatformConfig struct {
	Name     string        `mapstructure:"name" yaml:"name" validate:"required"`
	URL      string        `mapstructure:"url" yaml:"url" validate:"required"`
	Username string        `mapstructure:"username" yaml:"username" validate:"required"`
	Password string        `mapstructure:"password" yaml:"password" validate:"required"`
	TenantID string        `mapstructure:"tenant_id" yaml:"tenant_id,omitempty"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size" validate:"min=1,max=1000"`
	MaxPages int           `mapstructure:"max_pages" yaml:"max_pages" validate:"min=1"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// SMTPConfig contains the relay settings used for delivery
type SMTPConfig struct {
	Host     string        `mapstructure:"host" yaml:"host" validate:"required,hostname"`
	Port     int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Username string        `mapstructure:"username" yaml:"username" validate:"required,email"`
	Password string        `mapstructure:"password" yaml:"password" validate:"required"`
	From     string        `mapstructure:"from" yaml:"from,omitempty" validate:"omitempty,email"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// Sender returns the envelope sender address
func (s SMTPConfig) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

// ReportConfig describes who the report is about and who receives it
type ReportConfig struct {
	Customer  string   `mapstructure:"customer" yaml:"customer" validate:"required"`
	Domains   []string `mapstructure:"domains" yaml:"domains" validate:"required,min=1,dive,required"`
	Recipient string   `mapstructure:"recipient" yaml:"recipient" validate:"required,email"`
	Subject   string   `mapstructure:"subject" yaml:"subject" validate:"required"`
}

// ScheduleConfig contains the unattended run settings
type ScheduleConfig struct {
	Cron     string `mapstructure:"cron" yaml:"cron" validate:"required,cron"`
	TaskName string `mapstructure:"task_name" yaml:"task_name" validate:"required,alphanum"`
}

// RunConfig contains per-run housekeeping settings
type RunConfig struct {
	StateDir       string        `mapstructure:"state_dir" yaml:"state_dir"`
	LockStaleAfter time.Duration `mapstructure:"lock_stale_after" yaml:"lock_stale_after" validate:"gt=0"`
}

// LockPath returns the run lock location
func (r RunConfig) LockPath() string {
	return filepath.Join(r.StateDir, "mfareport.lock")
}

// LogPath returns the file scheduled runs append their output to
func (r RunConfig) LogPath() string {
	return filepath.Join(r.StateDir, "mfareport.log")
}

// LogConfig contains structured logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// MetricsConfig contains the optional Prometheus textfile output
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// FormatConfig contains output formatting settings
type FormatConfig struct {
	Default string `mapstructure:"default" yaml:"default" validate:"oneof=table json json-compact yaml text"`
	Colors  bool   `mapstructure:"colors" yaml:"colors"`
}

var (
	globalConfig *Config
	configPath   string
	debug        bool
	outputFormat string
)

// Initialize loads the configuration into the global accessor
func Initialize(configFile string) error {
	cfg, used, err := Load(configFile)
	if err != nil {
		return err
	}
	globalConfig = cfg
	configPath = used
	return nil
}

// Load reads, defaults and decodes the configuration without validating it.
// It returns the path of the file that was read.
func Load(configFile string) (*Config, string, error) {
	v := viper.New()

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(DefaultFileName)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, "", utils.NewStageError(utils.StageConfig,
				fmt.Errorf("config file not found (run 'mfareport config init'): %w", err))
		}
		return nil, "", utils.NewStageError(utils.StageConfig, fmt.Errorf("could not read config file: %w", err))
	}
	used := v.ConfigFileUsed()

	// secrets may live in a .env beside the config file; existing env vars win
	envFile := filepath.Join(filepath.Dir(used), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, "", utils.NewStageError(utils.StageConfig, fmt.Errorf("could not load %s: %w", envFile, err))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", utils.NewStageError(utils.StageConfig, fmt.Errorf("could not unmarshal config: %w", err))
	}

	if cfg.Run.StateDir == "" {
		cfg.Run.StateDir = DefaultStateDir()
	} else {
		cfg.Run.StateDir = expandHome(cfg.Run.StateDir)
	}

	return cfg, used, nil
}

// setDefaults registers every key so that env overrides reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.name", "Plextrac")
	v.SetDefault("platform.url", "")
	v.SetDefault("platform.username", "")
	v.SetDefault("platform.password", "")
	v.SetDefault("platform.tenant_id", "")
	v.SetDefault("platform.page_size", 100)
	v.SetDefault("platform.max_pages", 50)
	v.SetDefault("platform.timeout", "10s")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.timeout", "30s")
	v.SetDefault("report.customer", "")
	v.SetDefault("report.domains", []string{})
	v.SetDefault("report.recipient", "")
	v.SetDefault("report.subject", "MFA Non-compliant Users")
	v.SetDefault("schedule.cron", "0 8 * * 5")
	v.SetDefault("schedule.task_name", "MFAReport")
	v.SetDefault("run.state_dir", "")
	v.SetDefault("run.lock_stale_after", "6h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("format.default", "table")
	v.SetDefault("format.colors", true)
}

// Default returns a configuration populated with the built-in defaults
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			Name:     "Plextrac",
			PageSize: 100,
			MaxPages: 50,
			Timeout:  10 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: 30 * time.Second,
		},
		Report: ReportConfig{
			Domains: []string{},
			Subject: "MFA Non-compliant Users",
		},
		Schedule: ScheduleConfig{
			Cron:     "0 8 * * 5",
			TaskName: "MFAReport",
		},
		Run: RunConfig{
			StateDir:       DefaultStateDir(),
			LockStaleAfter: 6 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Format: FormatConfig{
			Default: "table",
			Colors:  true,
		},
	}
}

// DefaultStateDir returns $HOME/.mfareport, falling back to the temp dir
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mfareport")
	}
	return filepath.Join(home, ".mfareport")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Write stores cfg as YAML at path, readable only by the owner
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("could not create %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// CheckPermissions reports whether path is readable by group or others.
// Windows ACLs are not inspected.
func CheckPermissions(path string) (bool, error) {
	if runtime.GOOS == "windows" {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode().Perm()&0o077 != 0, nil
}

// Masked returns a copy with secrets hidden, for display
func (c *Config) Masked() *Config {
	out := *c
	out.Platform.Password = utils.MaskSecret(c.Platform.Password)
	out.SMTP.Password = utils.MaskSecret(c.SMTP.Password)
	out.Report.Domains = append([]string(nil), c.Report.Domains...)
	return &out
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		globalConfig = Default()
	}
	return globalConfig
}

// Path returns the file the global configuration was read from
func Path() string {
	return configPath
}

// SetDebug sets the debug mode
func SetDebug(enabled bool) {
	debug = enabled
}

// IsDebug returns whether debug mode is enabled
func IsDebug() bool {
	return debug
}

// SetOutputFormat sets the output format
func SetOutputFormat(format string) {
	outputFormat = format
}

// GetOutputFormat returns the current output format
func GetOutputFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	if globalConfig != nil && globalConfig.Format.Default != "" {
		return globalConfig.Format.Default
	}
	return "table"
}
