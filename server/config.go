package server

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/hashicorp/hcl"
	"github.com/pkg/errors"

	"github.com/bitinnocom/LTFS-Data-Management/queue"
	"github.com/bitinnocom/LTFS-Data-Management/recall"
)

const (
	// DefaultConfigDir is the default daemon config directory.
	DefaultConfigDir = "/etc/ltfsdm"
	// ConfigFile is the daemon config file in the config dir.
	ConfigFile = "ltfsdmd"

	// ConfigDirEnvVar overrides the config file location
	// (e.g. for development).
	ConfigDirEnvVar = "LTFSDM_CONFIG_DIR"

	// DefaultSocketPath is where the connector event socket lives.
	DefaultSocketPath = "/var/run/ltfsdm/transrecall.sock"

	// DefaultLTFSRoot is where LTFS cartridges are mounted.
	DefaultLTFSRoot = "/ltfs"

	// DefaultNumDrives is the number of tape drives assumed when the
	// config does not say.
	DefaultNumDrives = 2
)

// Config is the daemon configuration.
type Config struct {
	DBFile         string   `hcl:"db_file"`
	Socket         string   `hcl:"socket"`
	LTFSRoot       string   `hcl:"ltfs_root"`
	NumDrives      int      `hcl:"num_drives"`
	RecallThreads  int      `hcl:"recall_threads"`
	ReadBufferSize int      `hcl:"read_buffer_size"`
	Filesystems    []string `hcl:"filesystems"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		DBFile:         queue.DefaultDBFile,
		Socket:         DefaultSocketPath,
		LTFSRoot:       DefaultLTFSRoot,
		NumDrives:      DefaultNumDrives,
		RecallThreads:  recall.MaxTransparentRecallThreads,
		ReadBufferSize: recall.ReadBufferSize,
	}
}

// Merge fills unset fields of other from c and returns the result.
func (c *Config) Merge(other *Config) *Config {
	result := *c
	if other == nil {
		return &result
	}

	if other.DBFile != "" {
		result.DBFile = other.DBFile
	}
	if other.Socket != "" {
		result.Socket = other.Socket
	}
	if other.LTFSRoot != "" {
		result.LTFSRoot = other.LTFSRoot
	}
	if other.NumDrives > 0 {
		result.NumDrives = other.NumDrives
	}
	if other.RecallThreads > 0 {
		result.RecallThreads = other.RecallThreads
	}
	if other.ReadBufferSize > 0 {
		result.ReadBufferSize = other.ReadBufferSize
	}
	if len(other.Filesystems) > 0 {
		result.Filesystems = other.Filesystems
	}
	return &result
}

func (c *Config) checkValid() error {
	var problems []string

	if len(c.Filesystems) == 0 {
		problems = append(problems, "no managed filesystems configured")
	}
	if c.DBFile == "" {
		problems = append(problems, "db_file not set")
	}
	if c.Socket == "" {
		problems = append(problems, "socket not set")
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

// ConfigPath resolves the config file location.
func ConfigPath() string {
	dir := os.Getenv(ConfigDirEnvVar)
	if dir == "" {
		dir = DefaultConfigDir
	}
	return path.Join(dir, ConfigFile)
}

// LoadConfig reads and validates the config at path, merged over the
// defaults. A missing file is read as an empty one, so the defaults
// alone are validated; they name no managed filesystem and fail.
func LoadConfig(cfgPath string) (*Config, error) {
	loaded := &Config{}
	data, err := os.ReadFile(cfgPath)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, errors.Wrapf(err, "%s: read failed", cfgPath)
	default:
		if err := hcl.Decode(loaded, string(data)); err != nil {
			return nil, errors.Wrapf(err, "%s: parse failed", cfgPath)
		}
	}

	cfg := DefaultConfig().Merge(loaded)
	if err := cfg.checkValid(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("db:%s socket:%s ltfs:%s drives:%d threads:%d fs:%v",
		c.DBFile, c.Socket, c.LTFSRoot, c.NumDrives, c.RecallThreads, c.Filesystems)
}
