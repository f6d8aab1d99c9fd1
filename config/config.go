// Package config holds the node-wide configuration for the federation
// governance core, unmarshaled by viper the way the teacher's own
// config.Config is populated from a TOML file plus command-line flags.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// CommonConfig is a process-wide config slot. The federationd commands do
// not set it; they keep their own package-level config.
var CommonConfig *Config

// Config is the top-level configuration object. BaseConfig fields are
// squashed into the same mapping level, matching the teacher's
// `BaseConfig mapstructure:",squash"` convention.
type Config struct {
	BaseConfig `mapstructure:",squash"`
	Federation *FederationConfig `mapstructure:"federation"`
	API        *APIConfig        `mapstructure:"api"`
}

// BaseConfig carries the options common to every subsystem.
type BaseConfig struct {
	// RootDir is the root directory for all data (poll log, stores, logs).
	RootDir string `mapstructure:"home"`

	// LogLevel is the logrus level name ("debug", "info", "warn", "error").
	LogLevel string `mapstructure:"log_level"`

	// Moniker is a human readable name for this node.
	Moniker string `mapstructure:"moniker"`

	// DBBackend names the poll-log storage engine, matching the teacher's
	// own db_backend config key. Only "leveldb" (github.com/syndtr/goleveldb)
	// is implemented.
	DBBackend string `mapstructure:"db_backend"`

	// DBPath is the directory holding the poll-log LevelDB, relative to
	// RootDir unless absolute.
	DBPath string `mapstructure:"db_dir"`

	// LogDir is the directory rotated log files are written to.
	LogDir string `mapstructure:"log_dir"`
}

// FederationConfig describes the genesis federation and the governance
// tunables that gate poll finalization and idle eviction.
type FederationConfig struct {
	// Members seeds the federation roster at genesis.
	Members []MemberConfig `mapstructure:"members"`

	// MaxReorgLength is the activation delay (in blocks) between a poll
	// reaching majority and its side effect being executed.
	MaxReorgLength uint64 `mapstructure:"max_reorg_length"`

	// MaxIdleSeconds is the idle threshold the kicker schedules a kick at.
	MaxIdleSeconds uint64 `mapstructure:"max_idle_seconds"`

	// NodePubKeyHex, if set, identifies this process's own federation
	// identity, used to decide whether this node may schedule votes.
	NodePubKeyHex string `mapstructure:"node_pubkey"`
}

// MemberConfig is the on-disk representation of a genesis FederationMember.
type MemberConfig struct {
	PubKeyHex  string `mapstructure:"pubkey"`
	IsMultisig bool   `mapstructure:"is_multisig"`
}

// APIConfig configures the admin HTTP surface.
type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	ReleaseMode   bool   `mapstructure:"release_mode"`
}

// DefaultConfig returns the zero-value-safe configuration used when no
// config file is present, matching the teacher's DefaultConfig pattern.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig: DefaultBaseConfig(),
		Federation: DefaultFederationConfig(),
		API:        DefaultAPIConfig(),
	}
}

func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   "anonymous",
		LogLevel:  "info",
		DBBackend: "leveldb",
		DBPath:    "data",
		LogDir:    "log",
	}
}

func DefaultFederationConfig() *FederationConfig {
	return &FederationConfig{
		MaxReorgLength: 4,
		MaxIdleSeconds: 6 * 3600,
	}
}

func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		ListenAddress: "127.0.0.1:8080",
		ReleaseMode:   false,
	}
}

// SetRoot sets RootDir on the BaseConfig and returns cfg, matching the
// teacher's fluent Config.SetRoot.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// DBDir returns the poll-log database directory, resolved against RootDir.
func (b BaseConfig) DBDir() string {
	return rootify(b.DBPath, b.RootDir)
}

// AbsLogDir returns the rotated-log directory, resolved against RootDir.
func (b BaseConfig) AbsLogDir() string {
	return rootify(b.LogDir, b.RootDir)
}

// PollLogFile returns the append-only poll log's path.
func (b BaseConfig) PollLogFile() string {
	return filepath.Join(b.DBDir(), "polls.log")
}

// FederationFile returns the federation roster snapshot's path.
func (b BaseConfig) FederationFile() string {
	return filepath.Join(b.DBDir(), "federation.json")
}

// WhitelistFile returns the hash whitelist snapshot's path.
func (b BaseConfig) WhitelistFile() string {
	return filepath.Join(b.DBDir(), "whitelist.json")
}

// LastActiveFile returns the Idle Kicker's last-active snapshot's path.
func (b BaseConfig) LastActiveFile() string {
	return filepath.Join(b.DBDir(), "last_active.json")
}

// ResolveHome expands a leading "~" or "$HOME" in RootDir, mirroring the
// teacher's PersistentPreRunE home-resolution step in cmd/vapord/commands.
func (cfg *Config) ResolveHome() error {
	parts := strings.SplitN(cfg.RootDir, string(os.PathSeparator), 2)
	if len(parts) == 2 && (parts[0] == "~" || parts[0] == "$HOME") {
		usr, err := user.Current()
		if err != nil {
			return err
		}
		parts[0] = usr.HomeDir
		cfg.RootDir = filepath.Join(parts...)
	}
	cfg.SetRoot(cfg.RootDir)
	return nil
}

func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// DefaultDataDir returns "~/.federation", matching the teacher's
// DefaultDataDir pattern of placing state under the user's home directory.
func DefaultDataDir() string {
	home := homeDir()
	if home == "" {
		return "./.federation"
	}
	return filepath.Join(home, ".federation")
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
