// Package conf loads and validates the application settings.
package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gbif-alert/gbif-alert-go/internal/errors"
)

// Database backend identifiers.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// SQLiteSettings holds the sqlite backend configuration.
type SQLiteSettings struct {
	Enabled bool   // true when the sqlite backend is selected
	Path    string // path to the database file
}

// MySQLSettings holds the mysql backend configuration.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// ImportSettings drives the snapshot import pipeline.
type ImportSettings struct {
	CountryCode string // ISO country code used in the download predicate
	MinYear     int    // optional lower bound for the YEAR predicate clause, 0 to omit
	GBIFAPIBase string // base URL of the GBIF REST API (dataset title lookups)
}

// NotificationSettings configures outbound delivery.
type NotificationSettings struct {
	Enabled        bool
	URLs           []string // shoutrrr URLs for alert notifications
	AdminURLs      []string // shoutrrr URLs for operator import reports
	TimeoutSeconds int
}

// LoggingSettings configures the file loggers.
type LoggingSettings struct {
	Dir string // directory for per-service log files
}

// Settings is the root configuration shared by all commands.
type Settings struct {
	Main struct {
		Name string // site name, used in notification subjects
	}
	Database     DatabaseSettings
	Import       ImportSettings
	Notification NotificationSettings
	Logging      LoggingSettings
}

// setDefaults registers the default configuration values with viper.
func setDefaults() {
	viper.SetDefault("main.name", "GBIF Alert")
	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "gbif-alert.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("import.countrycode", "BE")
	viper.SetDefault("import.minyear", 2000)
	viper.SetDefault("import.gbifapibase", "https://api.gbif.org/v1")
	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.timeoutseconds", 30)
	viper.SetDefault("logging.dir", "logs")
}

// Load reads the configuration from config.yaml (current directory or
// $HOME/.config/gbif-alert) and returns validated settings. A missing file is
// not an error: defaults apply.
func Load() (*Settings, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "gbif-alert"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks settings consistency before any command runs.
func (s *Settings) Validate() error {
	if s.Database.SQLite.Enabled && s.Database.MySQL.Enabled {
		return errors.Newf("both sqlite and mysql backends are enabled, pick one").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !s.Database.SQLite.Enabled && !s.Database.MySQL.Enabled {
		return errors.Newf("no database backend enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Database.SQLite.Enabled && s.Database.SQLite.Path == "" {
		return errors.Newf("sqlite backend enabled but no path configured").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Import.CountryCode == "" {
		return errors.Newf("import.countrycode must be set").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Save writes the settings to the given path as YAML, creating parent
// directories as needed.
func Save(s *Settings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
