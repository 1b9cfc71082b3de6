package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/retailops/internal/db"
)

// Config is the full service configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Import   ImportConfig
	Staging  StagingConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	ReportDir string
	// RetentionMinutes controls how long terminal jobs stay queryable.
	RetentionMinutes int
}

// StagingConfig points at the object storage where uploads are staged.
// When Bucket is empty the local directory source is used instead.
type StagingConfig struct {
	LocalDir string
	Endpoint string
	Region   string
	Bucket   string
	KeyID    string
	Secret   string
}

// Load reads config.yaml from the given path, with environment overrides
// mapped through the RETAILOPS prefix (e.g. RETAILOPS_DATABASE_HOST).
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Import: ImportConfig{
			RetentionMinutes: 60,
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("RETAILOPS")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("staging.endpoint")
	v.BindEnv("staging.bucket")
	v.BindEnv("staging.key_id")
	v.BindEnv("staging.secret")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("import.report_dir") {
		cfg.Import.ReportDir = v.GetString("import.report_dir")
	}
	if v.IsSet("import.retention_minutes") {
		cfg.Import.RetentionMinutes = v.GetInt("import.retention_minutes")
	}
	if v.IsSet("staging.local_dir") {
		cfg.Staging.LocalDir = v.GetString("staging.local_dir")
	}
	if v.IsSet("staging.endpoint") {
		cfg.Staging.Endpoint = v.GetString("staging.endpoint")
	}
	if v.IsSet("staging.region") {
		cfg.Staging.Region = v.GetString("staging.region")
	}
	if v.IsSet("staging.bucket") {
		cfg.Staging.Bucket = v.GetString("staging.bucket")
	}
	if v.IsSet("staging.key_id") {
		cfg.Staging.KeyID = v.GetString("staging.key_id")
	}
	if v.IsSet("staging.secret") {
		cfg.Staging.Secret = v.GetString("staging.secret")
	}

	return cfg, nil
}
