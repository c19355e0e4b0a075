package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the resolved runtime configuration.
type ServerConfig struct {
	TCPPort        int
	SSHPort        int
	HTTPPort       int
	SSHHostKeyPath string
	SeedChannels   []uint32
}

// DefaultConfig returns the built-in defaults. The TCP port matches the
// protocol's historical default.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		TCPPort:        12345,
		SSHPort:        0,
		HTTPPort:       8080,
		SSHHostKeyPath: "~/.orzchat/ssh_host_key",
		SeedChannels:   []uint32{1024},
	}
}

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server   ServerSection   `toml:"server"`
	Channels ChannelsSection `toml:"channels"`
}

type ServerSection struct {
	TCPPort      int    `toml:"tcp_port"`
	SSHPort      int    `toml:"ssh_port"`
	HTTPPort     int    `toml:"http_port"`
	SSHHostKey   string `toml:"ssh_host_key"`
	DatabasePath string `toml:"database_path"`
}

type ChannelsSection struct {
	SeedChannels []uint32 `toml:"seed_channels"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			TCPPort:      12345,
			SSHPort:      0,
			HTTPPort:     8080,
			SSHHostKey:   "~/.orzchat/ssh_host_key",
			DatabasePath: "~/.orzchat/orzchat.db",
		},
		Channels: ChannelsSection{
			SeedChannels: []uint32{1024},
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found,
// and applies environment variable overrides
func LoadConfig(path string) (TOMLConfig, error) {
	// Expand ~ in path
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return TOMLConfig{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, create default config
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return applyEnvOverrides(config), nil
		}
		return applyEnvOverrides(config), nil
	}

	// Load from file
	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return applyEnvOverrides(config), nil
}

// applyEnvOverrides applies environment variable overrides to the config
// Environment variables follow the pattern: ORZCHAT_SECTION_KEY
// Example: ORZCHAT_SERVER_TCP_PORT=8080
func applyEnvOverrides(config TOMLConfig) TOMLConfig {
	if val := os.Getenv("ORZCHAT_SERVER_TCP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Server.TCPPort = port
		}
	}
	if val := os.Getenv("ORZCHAT_SERVER_SSH_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Server.SSHPort = port
		}
	}
	if val := os.Getenv("ORZCHAT_SERVER_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Server.HTTPPort = port
		}
	}
	if val := os.Getenv("ORZCHAT_SERVER_SSH_HOST_KEY"); val != "" {
		config.Server.SSHHostKey = val
	}
	if val := os.Getenv("ORZCHAT_SERVER_DATABASE_PATH"); val != "" {
		config.Server.DatabasePath = val
	}
	if val := os.Getenv("ORZCHAT_CHANNELS_SEED_CHANNELS"); val != "" {
		// Comma-separated channel ids
		var ids []uint32
		for _, part := range strings.Split(val, ",") {
			if id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32); err == nil {
				ids = append(ids, uint32(id))
			}
		}
		if len(ids) > 0 {
			config.Channels.SeedChannels = ids
		}
	}

	return config
}

// writeDefaultConfig writes the default config to a file with all options documented
func writeDefaultConfig(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	content := `# OrzChat Server Configuration
# This file was auto-generated with default values
# Restart the server for changes to take effect
#
# Environment variables can override these settings:
# ORZCHAT_SECTION_KEY (e.g., ORZCHAT_SERVER_TCP_PORT=8080)

[server]
# Port for TCP connections
tcp_port = 12345

# Port for SSH connections
# Set to 0 to disable
ssh_port = 0

# Port for the HTTP server (/metrics, /ws endpoints)
# Set to 0 to disable
http_port = 8080

# Path to SSH host key file (generated on first SSH start)
ssh_host_key = "~/.orzchat/ssh_host_key"

# Path to SQLite database file (persists the channel list)
database_path = "~/.orzchat/orzchat.db"

[channels]
# Channel ids advertised to clients on first startup if the database is empty.
# Channel 0 is the implicit global channel and must not appear here.
seed_channels = [1024]
`

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToServerConfig converts TOMLConfig to ServerConfig
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if c.Server.TCPPort != 0 {
		cfg.TCPPort = c.Server.TCPPort
	}

	cfg.SSHPort = c.Server.SSHPort
	cfg.HTTPPort = c.Server.HTTPPort

	if strings.TrimSpace(c.Server.SSHHostKey) != "" {
		cfg.SSHHostKeyPath = c.Server.SSHHostKey
	}

	if len(c.Channels.SeedChannels) > 0 {
		cfg.SeedChannels = c.Channels.SeedChannels
	}

	return cfg
}

// GetDatabasePath returns the database path with ~ expanded
func (c *TOMLConfig) GetDatabasePath() (string, error) {
	path := c.Server.DatabasePath
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}
