// config.go: loading, saving and access to the hushd configuration
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// QuietHoursSettings defines the daily suppression window for quiet-aware
// behaviors. Times are local "HH:MM" strings; start == end disables the window.
type QuietHoursSettings struct {
	Enabled bool   // true to enable quiet hours suppression
	Start   string // window start, inclusive (e.g. "22:00")
	End     string // window end, exclusive (e.g. "07:00")
}

// NotificationSettings groups the classification and delivery policy knobs.
type NotificationSettings struct {
	QuietHours          QuietHoursSettings // quiet hours window
	Behaviors           map[string]string  // per-category behavior overrides (category -> behavior)
	Overrides           map[string]string  // per-entity category overrides (entity id -> category)
	RetentionDays       int                // history horizon in days, older records are swept
	DedupWindowMinutes  int                // duplicate window for notify_with_dedup
	HourlyWindowMinutes int                // duplicate window for notify_once_per_hour
}

// PushTargetConfig is a single shoutrrr delivery target.
type PushTargetConfig struct {
	Name       string   // display name, also used in logs and metrics
	URL        string   // shoutrrr service URL
	Categories []string // category filter, empty matches all
}

// WebhookAuthConfig holds webhook credentials. Each secret accepts either a
// literal value or a file path, file taking precedence.
type WebhookAuthConfig struct {
	Type      string // "none", "bearer", "basic" or "custom"
	Token     string // bearer token
	TokenFile string // path to file containing the bearer token
	User      string // basic auth user
	UserFile  string // path to file containing the basic auth user
	Pass      string // basic auth password
	PassFile  string // path to file containing the basic auth password
	Header    string // custom header name
	Value     string // custom header value
	ValueFile string // path to file containing the custom header value
}

// WebhookConfig is a single webhook delivery endpoint.
type WebhookConfig struct {
	Name           string            // display name
	URL            string            // endpoint URL
	Method         string            // POST, PUT or PATCH, default POST
	TimeoutSeconds int               // request timeout, default 30
	Headers        map[string]string // extra headers sent with every request
	Auth           WebhookAuthConfig // authentication settings
	Categories     []string          // category filter, empty matches all
}

// PushSettings configures outbound delivery of accepted notifications.
type PushSettings struct {
	Enabled  bool               // true to enable push delivery
	Targets  []PushTargetConfig // shoutrrr targets
	Webhooks []WebhookConfig    // webhook endpoints
}

// MQTTSettings contains settings for the MQTT event ingest.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT ingest
	Broker   string // MQTT broker (tcp://host:port)
	Topic    string // topic to subscribe for incoming events
	ClientID string // MQTT client identifier
	Username string // MQTT username
	Password string // MQTT password
}

// IngestSettings groups the event sources feeding the pipeline.
type IngestSettings struct {
	MQTT MQTTSettings // MQTT ingest settings
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus compatible telemetry endpoint
	Listen  string // IP address and port to listen on
}

// SentrySettings configures the opt-in error reporting integration.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error reporting, disabled by default
	DSN     string // Sentry DSN
}

// BasicAuth holds credentials for the web API.
type BasicAuth struct {
	Enabled  bool   // true to require authentication on the API
	Username string // login user
	Password string // bcrypt hash of the login password
}

// Security contains the authentication configuration.
type Security struct {
	BasicAuth BasicAuth // basic auth configuration
}

type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this hushd node, used to identify event source
		Log  LogConfig // logging configuration
	}

	Notification NotificationSettings // classification and policy settings
	Push         PushSettings         // push delivery settings
	Ingest       IngestSettings       // event ingest settings

	WebServer struct {
		Debug   bool      // true to enable debug mode
		Enabled bool      // true to enable web server
		Port    string    // port for web server
		Log     LogConfig // logging configuration for web server
	}

	Security Security // security configuration

	Telemetry TelemetrySettings // telemetry endpoint settings
	Sentry    SentrySettings    // error reporting settings

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay string       // Day of the week for RotationWeekly (as a string: "Sunday", "Monday", etc.)
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// Create a new settings struct
	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	// Save settings instance
	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Get OS specific config paths
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	// Assign config paths to Viper
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file.
// It uses SaveYAMLConfig to handle the atomic write process.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	// Work on a copy so the live instance cannot change mid-write
	settingsCopy := *settingsInstance

	// Find the path of the current config file
	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	// Save the settings to the config file
	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	// Marshal the settings struct to YAML
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write the YAML data to a temporary file
	// This is done to ensure atomic write operation
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	// Ensure the temporary file is removed in case of any failure
	defer os.Remove(tempFileName)

	// Write the YAML data to the temporary file
	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	// Close the temporary file after writing
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Try to rename the temporary file to replace the original config file
	// This is typically an atomic operation on most filesystems
	if err := os.Rename(tempFileName, configPath); err != nil {
		// If rename fails (e.g., cross-device link), fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// suitable for use as a client secret. The output is 43 characters long,
// providing 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Failed to generate random secret: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
