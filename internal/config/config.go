// Package config builds the runtime configuration once at startup.
//
// Values are layered, lowest first: built-in defaults, a config file
// (--config, or objektdl.toml in the working directory), OBJEKTDL_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName = "objektdl"
	// DefaultFileName is looked up in the working directory when no
	// --config is given.
	DefaultFileName = "objektdl.toml"
	EnvPrefix       = "OBJEKTDL"
)

// ErrInvalid marks configuration problems. Callers exit with the
// configuration exit code before any network call.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Repo              string        `mapstructure:"repo"`
	APIBase           string        `mapstructure:"api_base"`
	InstallDir        string        `mapstructure:"install_dir"`
	StagingDir        string        `mapstructure:"staging_dir"`
	StoreFile         string        `mapstructure:"store_file"`
	TokenKey          string        `mapstructure:"token_key"`
	MetadataTimeout   time.Duration `mapstructure:"metadata_timeout"`
	DownloadTimeout   time.Duration `mapstructure:"download_timeout"`
	MinisignPublicKey string        `mapstructure:"minisign_public_key"`
	RequireImmutable  bool          `mapstructure:"require_immutable"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Repo:            "azagal258/objektdl",
		APIBase:         "https://api.github.com",
		StagingDir:      "update_temp",
		StoreFile:       ".env",
		TokenKey:        "gh_api_token",
		MetadataTimeout: 10 * time.Second,
		DownloadTimeout: 5 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"repo":        "repo",
	"api-base":    "api_base",
	"install-dir": "install_dir",
	"log-level":   "log_level",
	"log-format":  "log_format",
}

type LoadOptions struct {
	// ConfigFile is an explicit config path; it must exist.
	ConfigFile string
	// Flags supplies the highest-precedence layer. May be nil.
	Flags *pflag.FlagSet
}

// Load layers defaults, file, environment and flags, then validates. It
// returns the config and the file it read, if any.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()
	setDefaults(v, Default())

	resolvedPath := ""
	switch {
	case opts.ConfigFile != "":
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, "", fmt.Errorf("%w: config file %s: %v", ErrInvalid, opts.ConfigFile, err)
		}
		resolvedPath = opts.ConfigFile
	case fileExists(DefaultFileName):
		resolvedPath = DefaultFileName
	}
	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("%w: read %s: %v", ErrInvalid, resolvedPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, opts.Flags); err != nil {
		return nil, "", err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("%w: decode: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("repo", d.Repo)
	v.SetDefault("api_base", d.APIBase)
	v.SetDefault("install_dir", d.InstallDir)
	v.SetDefault("staging_dir", d.StagingDir)
	v.SetDefault("store_file", d.StoreFile)
	v.SetDefault("token_key", d.TokenKey)
	v.SetDefault("metadata_timeout", d.MetadataTimeout)
	v.SetDefault("download_timeout", d.DownloadTimeout)
	v.SetDefault("minisign_public_key", d.MinisignPublicKey)
	v.SetDefault("require_immutable", d.RequireImmutable)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Validate collects every problem instead of stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	owner, name, ok := strings.Cut(strings.TrimSpace(c.Repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		problems = append(problems, fmt.Sprintf("repo: must be owner/name (got %q)", c.Repo))
	}
	if !strings.HasPrefix(c.APIBase, "https://") && !strings.HasPrefix(c.APIBase, "http://") {
		problems = append(problems, fmt.Sprintf("api_base: must be an http(s) URL (got %q)", c.APIBase))
	}

	staging := strings.TrimSpace(c.StagingDir)
	switch {
	case staging == "":
		problems = append(problems, "staging_dir: missing")
	case filepath.IsAbs(staging):
		problems = append(problems, fmt.Sprintf("staging_dir: must be relative to the install dir (got %q)", staging))
	default:
		clean := filepath.Clean(staging)
		if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			problems = append(problems, fmt.Sprintf("staging_dir: must name a directory inside the install dir (got %q)", staging))
		}
	}

	if strings.TrimSpace(c.StoreFile) == "" {
		problems = append(problems, "store_file: missing")
	}
	if strings.TrimSpace(c.TokenKey) == "" {
		problems = append(problems, "token_key: missing")
	}
	if c.MetadataTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("metadata_timeout: must be > 0 (got %s)", c.MetadataTimeout))
	}
	if c.DownloadTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("download_timeout: must be > 0 (got %s)", c.DownloadTimeout))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level: %v", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("log_format: unsupported %q (supported: text, json)", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrInvalid, strings.Join(problems, "\n- "))
	}
	return nil
}

// WriteDefault writes the built-in configuration as TOML to path. An
// existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	d := Default()
	doc := map[string]any{
		"repo":                d.Repo,
		"api_base":            d.APIBase,
		"install_dir":         d.InstallDir,
		"staging_dir":         d.StagingDir,
		"store_file":          d.StoreFile,
		"token_key":           d.TokenKey,
		"metadata_timeout":    d.MetadataTimeout.String(),
		"download_timeout":    d.DownloadTimeout.String(),
		"minisign_public_key": d.MinisignPublicKey,
		"require_immutable":   d.RequireImmutable,
		"log_level":           d.LogLevel,
		"log_format":          d.LogFormat,
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		// #nosec G301 -- user-chosen config location
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	header := "# " + AppName + " configuration\n"
	// #nosec G306 -- config holds no secrets by default
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
