package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk YAML shape; every field is a pointer or
// zero-value-means-unset so applyFile can tell "absent" from "explicitly zero".
type fileConfig struct {
	AdminPassword      *string                     `yaml:"admin_password"`
	WorkspaceRoot      *string                     `yaml:"workspace_root"`
	ListenPort         *int                        `yaml:"listen_port"`
	HITLTTLSeconds     *int                        `yaml:"hitl_ttl_seconds"`
	AuditRetentionDays *int                        `yaml:"audit_retention_days"`
	DBPath             *string                     `yaml:"db_path"`
	SecretsFilePath    *string                     `yaml:"secrets_file"`
	LogLevel           *string                     `yaml:"log_level"`
	HTTP               *httpFileConfig             `yaml:"http"`
	Tools              map[string]map[string]toolFileConfig `yaml:"tools"`
}

type httpFileConfig struct {
	BlockPrivateIPs        *bool    `yaml:"block_private_ips"`
	BlockMetadataEndpoints *bool    `yaml:"block_metadata_endpoints"`
	AllowDomains           []string `yaml:"allow_domains"`
	BlockDomains           []string `yaml:"block_domains"`
	DefaultTimeoutSec      *int     `yaml:"default_timeout"`
	MaxTimeoutSec          *int     `yaml:"max_timeout"`
	MaxResponseSizeKB      *int     `yaml:"max_response_size_kb"`
}

type toolFileConfig struct {
	Policy        string   `yaml:"policy"`
	HITLPatterns  []string `yaml:"hitl_patterns"`
	BlockPatterns []string `yaml:"block_patterns"`
	Expression    string   `yaml:"expression"`
}

// LoadFile reads and parses a YAML config file. A missing file is an error
// (wrapping the os.ReadFile failure); callers that treat the file as
// optional should check os.IsNotExist before calling, or just skip
// LoadFile and rely on defaults + env.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := Defaults()
	applyFile(cfg, &fc)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the final Config by layering, low to high precedence:
// defaults, the YAML file at filePath (if it exists), then environment
// variables.
func Load(filePath string) (*Config, error) {
	cfg := Defaults()

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
			applyFile(cfg, &fc)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.AdminPassword != nil {
		cfg.AdminPassword = *fc.AdminPassword
	}
	if fc.WorkspaceRoot != nil {
		cfg.WorkspaceRoot = *fc.WorkspaceRoot
	}
	if fc.ListenPort != nil {
		cfg.ListenPort = *fc.ListenPort
	}
	if fc.HITLTTLSeconds != nil {
		cfg.HITLTTLSeconds = *fc.HITLTTLSeconds
	}
	if fc.AuditRetentionDays != nil {
		cfg.AuditRetentionDays = *fc.AuditRetentionDays
	}
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if fc.SecretsFilePath != nil {
		cfg.SecretsFilePath = *fc.SecretsFilePath
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.HTTP != nil {
		h := fc.HTTP
		if h.BlockPrivateIPs != nil {
			cfg.HTTP.BlockPrivateIPs = *h.BlockPrivateIPs
		}
		if h.BlockMetadataEndpoints != nil {
			cfg.HTTP.BlockMetadataEndpoints = *h.BlockMetadataEndpoints
		}
		if h.AllowDomains != nil {
			cfg.HTTP.AllowDomains = h.AllowDomains
		}
		if h.BlockDomains != nil {
			cfg.HTTP.BlockDomains = h.BlockDomains
		}
		if h.DefaultTimeoutSec != nil {
			cfg.HTTP.DefaultTimeoutSec = *h.DefaultTimeoutSec
		}
		if h.MaxTimeoutSec != nil {
			cfg.HTTP.MaxTimeoutSec = *h.MaxTimeoutSec
		}
		if h.MaxResponseSizeKB != nil {
			cfg.HTTP.MaxResponseSizeKB = *h.MaxResponseSizeKB
		}
	}
	for category, names := range fc.Tools {
		for name, t := range names {
			cfg.Tools[category+"."+name] = ToolPolicyConfig{
				Policy:        t.Policy,
				HITLPatterns:  t.HITLPatterns,
				BlockPatterns: t.BlockPatterns,
				Expression:    t.Expression,
			}
		}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOSTBRIDGE_ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	if v := os.Getenv("HOSTBRIDGE_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("HOSTBRIDGE_LISTEN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = n
		}
	}
	if v := os.Getenv("HOSTBRIDGE_HITL_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HITLTTLSeconds = n
		}
	}
	if v := os.Getenv("HOSTBRIDGE_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuditRetentionDays = n
		}
	}
	if v := os.Getenv("HOSTBRIDGE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("HOSTBRIDGE_SECRETS_FILE"); v != "" {
		cfg.SecretsFilePath = v
	}
	if v := os.Getenv("HOSTBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HOSTBRIDGE_HTTP_BLOCK_PRIVATE_IPS"); v != "" {
		cfg.HTTP.BlockPrivateIPs = v == "true" || v == "1"
	}
	if v := os.Getenv("HOSTBRIDGE_HTTP_BLOCK_METADATA_ENDPOINTS"); v != "" {
		cfg.HTTP.BlockMetadataEndpoints = v == "true" || v == "1"
	}
	if v := os.Getenv("HOSTBRIDGE_HTTP_ALLOW_DOMAINS"); v != "" {
		cfg.HTTP.AllowDomains = strings.Split(v, ",")
	}
	if v := os.Getenv("HOSTBRIDGE_HTTP_BLOCK_DOMAINS"); v != "" {
		cfg.HTTP.BlockDomains = strings.Split(v, ",")
	}
}
