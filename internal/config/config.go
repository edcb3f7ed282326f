package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Terminology TerminologyConfig `yaml:"terminology" mapstructure:"terminology"`
	Measures    MeasuresConfig    `yaml:"measures" mapstructure:"measures"`
	Reports     ReportsConfig     `yaml:"reports" mapstructure:"reports"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// TerminologyConfig configures access to the NHS Terminology Server.
type TerminologyConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	TokenURL        string  `yaml:"token_url" mapstructure:"token_url"`
	System          string  `yaml:"system" mapstructure:"system"`
	SentinelCode    string  `yaml:"sentinel_code" mapstructure:"sentinel_code"`
	CredentialsPath string  `yaml:"credentials_path" mapstructure:"credentials_path"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec      float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// MeasuresConfig configures where measure SQL lives and how to find it.
type MeasuresConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	Pattern   string `yaml:"pattern" mapstructure:"pattern"`
	SourceURL string `yaml:"source_url" mapstructure:"source_url"`
}

// ReportsConfig configures report output.
type ReportsConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	PreviewBaseURL string `yaml:"preview_base_url" mapstructure:"preview_base_url"`
	LogoPath       string `yaml:"logo_path" mapstructure:"logo_path"`
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the report preview server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Credentials holds the OAuth2 client credentials for the terminology
// server. The file is created by the calling automation at process start.
type Credentials struct {
	ClientID     string `json:"CLIENT_ID"`
	ClientSecret string `json:"CLIENT_SECRET"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DMDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("terminology.base_url", "https://ontology.nhs.uk/production1/fhir")
	v.SetDefault("terminology.token_url", "https://ontology.nhs.uk/authorisation/auth/realms/nhs-digital-terminology/protocol/openid-connect/token")
	v.SetDefault("terminology.system", "https://dmd.nhs.uk")
	v.SetDefault("terminology.sentinel_code", "96062004")
	v.SetDefault("terminology.credentials_path", "credentials.json")
	v.SetDefault("terminology.timeout_secs", 30)
	v.SetDefault("terminology.rate_per_sec", 5)
	v.SetDefault("measures.dir", "measures")
	v.SetDefault("measures.pattern", "**/*.sql")
	v.SetDefault("measures.source_url", "https://github.com/bennettoxford/openprescribing-hospitals/tree/main/viewer/measures")
	v.SetDefault("reports.dir", "reports")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "dmdwatch.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// LoadCredentials reads the client id/secret file referenced by the
// terminology config.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read credentials %s", path)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, eris.Wrap(err, "config: parse credentials")
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, eris.New("config: credentials file missing CLIENT_ID or CLIENT_SECRET")
	}

	return &creds, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
