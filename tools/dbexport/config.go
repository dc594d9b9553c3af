package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings for the export tool, populated from flags with
// a fallback to an existing hushd config.yaml for connection details.
type Config struct {
	// Source database
	SQLitePath string

	// Target database - either DSN or individual components
	MySQLDSN      string
	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPass     string
	MySQLDatabase string

	// Migration options
	BatchSize  int
	Clean      bool
	SkipVerify bool
	Verbose    bool

	// Config file path for fallback
	ConfigPath string
}

// Load validates and loads the configuration, falling back to config.yaml
// for anything the flags left unset.
func (c *Config) Load() error {
	if c.SQLitePath == "" || (c.MySQLDSN == "" && c.MySQLHost == "") {
		if err := c.loadFromConfigFile(); err != nil && c.Verbose {
			fmt.Printf("Note: no usable config file: %v\n", err)
		}
	}

	if c.SQLitePath == "" {
		return fmt.Errorf("--sqlite-path is required (or set output.sqlite.path in config.yaml)")
	}

	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}

	if c.MySQLDSN == "" {
		if c.MySQLHost == "" {
			return fmt.Errorf("--mysql-dsn or --mysql-host is required (or enable output.mysql in config.yaml)")
		}
		if c.MySQLDatabase == "" {
			return fmt.Errorf("--mysql-database is required")
		}
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > 10000 {
		return fmt.Errorf("batch-size too large (max 10000)")
	}

	return nil
}

// loadFromConfigFile reads connection details from a hushd config.yaml.
func (c *Config) loadFromConfigFile() error {
	v := viper.New()

	configPath := c.ConfigPath
	if configPath == "" {
		// Try the default location, falling back to the working directory
		if homeDir, err := os.UserHomeDir(); err == nil {
			p := filepath.Join(homeDir, ".config", "hushd", "config.yaml")
			if _, statErr := os.Stat(p); statErr == nil {
				configPath = p
			}
		}
		if configPath == "" {
			configPath = "config.yaml"
		}
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if c.SQLitePath == "" {
		if p := v.GetString("output.sqlite.path"); p != "" {
			c.SQLitePath = p
		}
	}

	if c.MySQLDSN == "" && c.MySQLHost == "" {
		if v.GetBool("output.mysql.enabled") {
			c.MySQLHost = v.GetString("output.mysql.host")
			c.MySQLPort = v.GetInt("output.mysql.port")
			if c.MySQLPort == 0 {
				c.MySQLPort = 3306
			}
			c.MySQLUser = v.GetString("output.mysql.username")
			c.MySQLPass = v.GetString("output.mysql.password")
			c.MySQLDatabase = v.GetString("output.mysql.database")
		}
	}

	return nil
}

// GetMySQLDSN returns the MySQL DSN, either as given or assembled from the
// individual components.
func (c *Config) GetMySQLDSN() string {
	if c.MySQLDSN != "" {
		return c.MySQLDSN
	}

	// Format: user:password@tcp(host:port)/database?charset=utf8mb4&parseTime=True&loc=Local
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.MySQLUser,
		c.MySQLPass,
		c.MySQLHost,
		c.MySQLPort,
		c.MySQLDatabase,
	)
}

// GetSanitizedMySQLDSN returns the MySQL DSN with the password masked for logging.
func (c *Config) GetSanitizedMySQLDSN() string {
	dsn := c.GetMySQLDSN()

	// Format: user:password@tcp(host:port)/database
	if idx := strings.Index(dsn, ":"); idx != -1 {
		if atIdx := strings.LastIndex(dsn, "@"); atIdx != -1 && atIdx > idx {
			return dsn[:idx+1] + "****" + dsn[atIdx:]
		}
	}

	return dsn
}
