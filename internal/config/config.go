// Package config loads HostBridge's static settings: the workspace root,
// listen port, HITL/audit tunables, HTTP egress rules, and the per-tool
// policy table. Sources are consulted in order of precedence: environment
// variables, the YAML config file, then built-in defaults.
package config

// Config is the fully-resolved, validated configuration used to build the
// composition root at startup.
type Config struct {
	AdminPassword      string
	WorkspaceRoot      string
	ListenPort         int
	HITLTTLSeconds     int
	AuditRetentionDays int
	DBPath             string
	SecretsFilePath    string
	LogLevel           string

	HTTP HTTPConfig

	// Tools maps "category.name" to a per-tool policy override.
	Tools map[string]ToolPolicyConfig
}

// HTTPConfig governs the http egress tool category's SSRF guard and
// domain filtering.
type HTTPConfig struct {
	BlockPrivateIPs       bool
	BlockMetadataEndpoints bool
	AllowDomains          []string
	BlockDomains          []string
	DefaultTimeoutSec     int
	MaxTimeoutSec         int
	MaxResponseSizeKB     int
}

// ToolPolicyConfig overrides a tool's default policy decision and supplies
// glob pattern lists evaluated against the tool's primary path-like param.
type ToolPolicyConfig struct {
	Policy        string // "allow", "block", or "hitl"
	HITLPatterns  []string
	BlockPatterns []string

	// Expression is an optional JS predicate (evaluated against
	// category/name/params) that, when true, requires approval. It
	// composes with Policy/HITLPatterns/BlockPatterns rather than
	// replacing them.
	Expression string
}

// Defaults returns the built-in baseline config, the lowest-precedence
// source.
func Defaults() *Config {
	return &Config{
		WorkspaceRoot:      "./workspace",
		ListenPort:         8088,
		HITLTTLSeconds:     300,
		AuditRetentionDays: 30,
		DBPath:             "./hostbridge.db",
		SecretsFilePath:    "./secrets.env",
		LogLevel:           "info",
		HTTP: HTTPConfig{
			BlockPrivateIPs:        true,
			BlockMetadataEndpoints: true,
			DefaultTimeoutSec:      10,
			MaxTimeoutSec:          60,
			MaxResponseSizeKB:      512,
		},
		Tools: make(map[string]ToolPolicyConfig),
	}
}
