package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the platform services. A single file
// drives every binary; each service reads its own section plus the shared ones.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Identity  IdentityConfig  `yaml:"identity"`
	Campaigns CampaignsConfig `yaml:"campaigns"`
	Validator ValidatorConfig `yaml:"validator"`
	Enhancer  EnhancerConfig  `yaml:"enhancer"`

	JWT       JWTConfig       `yaml:"jwt"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Specs     SpecsConfig     `yaml:"channel_specs"`
	Brand     BrandConfig     `yaml:"brand"`

	Environment string `yaml:"environment"` // development | production
}

// IsProduction reports whether cookies must carry Secure and CORS tighten up.
func (c *Config) IsProduction() bool { return c.Environment == "production" }

// ServerConfig holds the listen address for one service.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// GatewayConfig holds edge gateway settings.
type GatewayConfig struct {
	Server      ServerConfig `yaml:"server"`
	CORSOrigins []string     `yaml:"cors_origins"`

	// Downstream base URLs keyed by service name.
	Services map[string]string `yaml:"services"`

	IdentityTimeoutSeconds int `yaml:"identity_timeout_seconds"`
	ProxyTimeoutSeconds    int `yaml:"proxy_timeout_seconds"`
	StreamTimeoutSeconds   int `yaml:"stream_timeout_seconds"`

	// Body ceilings are explicit, not implicit: buffered responses are
	// capped, streamed responses are only bounded by the stream timeout.
	MaxBufferedBodyBytes int64 `yaml:"max_buffered_body_bytes"`
}

// IdentityTimeout returns the deadline for gateway→identity lookups.
func (c GatewayConfig) IdentityTimeout() time.Duration {
	return time.Duration(c.IdentityTimeoutSeconds) * time.Second
}

// ProxyTimeout returns the deadline for buffered downstream calls.
func (c GatewayConfig) ProxyTimeout() time.Duration {
	return time.Duration(c.ProxyTimeoutSeconds) * time.Second
}

// StreamTimeout returns the wall-clock ceiling for SSE streams.
func (c GatewayConfig) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSeconds) * time.Second
}

// IdentityConfig holds identity service settings.
type IdentityConfig struct {
	Server            ServerConfig `yaml:"server"`
	AccessTTLMinutes  int          `yaml:"access_ttl_minutes"`
	RefreshTTLDays    int          `yaml:"refresh_ttl_days"`
	BcryptCost        int          `yaml:"bcrypt_cost"`
	CookieDomain      string       `yaml:"cookie_domain"`
}

// AccessTTL returns the access token lifetime.
func (c IdentityConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (c IdentityConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// CampaignsConfig holds campaign engine settings.
type CampaignsConfig struct {
	Server             ServerConfig `yaml:"server"`
	MaxUploadBytes     int64        `yaml:"max_upload_bytes"`
	CommentMaxLength   int          `yaml:"comment_max_length"`
}

// ValidatorConfig holds validation orchestrator settings.
type ValidatorConfig struct {
	Server                ServerConfig `yaml:"server"`
	ContentServiceURL     string       `yaml:"content_service_url"`
	RenderServiceURL      string       `yaml:"render_service_url"`
	SpecsServiceURL       string       `yaml:"specs_service_url"`
	ToolTimeoutSeconds    int          `yaml:"tool_timeout_seconds"`
	TotalTimeoutSeconds   int          `yaml:"total_timeout_seconds"`
	LegalCacheTTLMinutes  int          `yaml:"legal_cache_ttl_minutes"`
	LegalTopK             int          `yaml:"legal_top_k"`
	LegalHybridAlpha      float64      `yaml:"legal_hybrid_alpha"`
	LegalCorpusPath       string       `yaml:"legal_corpus_path"` // empty uses the built-in corpus
	MaxImageBytes         int64        `yaml:"max_image_bytes"`
}

// ToolTimeout returns the per-tool deadline (content service, render, specs).
func (c ValidatorConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// TotalTimeout returns the whole-graph wall-clock ceiling.
func (c ValidatorConfig) TotalTimeout() time.Duration {
	return time.Duration(c.TotalTimeoutSeconds) * time.Second
}

// LegalCacheTTL returns the verdict cache TTL.
func (c ValidatorConfig) LegalCacheTTL() time.Duration {
	return time.Duration(c.LegalCacheTTLMinutes) * time.Minute
}

// EnhancerConfig holds briefing enhancer settings.
type EnhancerConfig struct {
	Server          ServerConfig `yaml:"server"`
	CacheTTLMinutes int          `yaml:"cache_ttl_minutes"`
	SessionHistory  int          `yaml:"session_history"` // prior enhancements summarized into the prompt
}

// CacheTTL returns the enhancer decision cache TTL.
func (c EnhancerConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// JWTConfig holds token signing settings. Only HS256 is supported; the
// algorithm field exists so a mismatch fails loudly instead of silently.
type JWTConfig struct {
	Secret    string `yaml:"secret"`
	Algorithm string `yaml:"algorithm"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis settings for the verdict and enhancer caches.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// StorageConfig holds object store settings for creative artifacts.
type StorageConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // empty uses the default credential chain
	Endpoint   string `yaml:"endpoint"`    // non-empty for minio/localstack
}

// GetAWSProfile returns the AWS profile, with environment override.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// BedrockConfig holds LLM settings.
type BedrockConfig struct {
	ModelID        string `yaml:"model_id"`
	EmbedModelID   string `yaml:"embed_model_id"`
	Region         string `yaml:"region"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the LLM invocation deadline.
func (c BedrockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RateLimitRule is "N requests per window" for one key.
type RateLimitRule struct {
	Requests int    `yaml:"requests"`
	Per      string `yaml:"per"` // minute | hour
}

// Window returns the rule's window duration.
func (r RateLimitRule) Window() time.Duration {
	if r.Per == "hour" {
		return time.Hour
	}
	return time.Minute
}

// RateLimitConfig resolves limits by path: exact-path override beats the
// service default, which beats the global default.
type RateLimitConfig struct {
	Enabled bool                     `yaml:"enabled"`
	Global  RateLimitRule            `yaml:"global"`
	Service map[string]RateLimitRule `yaml:"service"` // keyed by service name
	Paths   map[string]RateLimitRule `yaml:"paths"`   // keyed by exact path
}

// Resolve returns the rule for a path routed to the named service, plus the
// bucket-key suffix identifying which rule matched.
func (c RateLimitConfig) Resolve(path, service string) (RateLimitRule, string) {
	if rule, ok := c.Paths[path]; ok {
		return rule, "path:" + path
	}
	if rule, ok := c.Service[service]; ok {
		return rule, "svc:" + service
	}
	return c.Global, "global"
}

// ChannelSpec is the spec row for one (channel, commercial space). The same
// shape serves the YAML fallback and the specs tool wire format.
type ChannelSpec struct {
	Channel         string `yaml:"channel" json:"channel"`
	CommercialSpace string `yaml:"commercial_space" json:"commercial_space"`
	MaxBodyChars    int    `yaml:"max_body_chars" json:"max_body_chars"`
	MaxTitleChars   int    `yaml:"max_title_chars" json:"max_title_chars"`
	MaxHTMLBytes    int64  `yaml:"max_html_bytes" json:"max_html_bytes"`
	MaxImageBytes   int64  `yaml:"max_image_bytes" json:"max_image_bytes"`
	RenderWarnBytes int64  `yaml:"render_warn_bytes" json:"render_warn_bytes"`
	ExpectedWidth   int    `yaml:"expected_width" json:"expected_width"`
	ExpectedHeight  int    `yaml:"expected_height" json:"expected_height"`
	DimensionTolPct int    `yaml:"dimension_tolerance_pct" json:"dimension_tolerance_pct"`
}

// SpecsConfig is the local YAML fallback used when the specs tool is down.
type SpecsConfig struct {
	Rows []ChannelSpec `yaml:"rows"`
}

// BrandConfig holds the deterministic brand rulebook.
type BrandConfig struct {
	ApprovedColors    []string `yaml:"approved_colors"`
	PrimaryColors     []string `yaml:"primary_colors"`
	NeutralColors     []string `yaml:"neutral_colors"`
	FontWhitelist     []string `yaml:"font_whitelist"`
	MinFontSizePx     int      `yaml:"min_font_size_px"`
	LogoMinWidthPx    int      `yaml:"logo_min_width_px"`
	ContainerMaxWidth int      `yaml:"container_max_width_px"`
	CTAColors         []string `yaml:"cta_colors"`
	FooterCopyright   string   `yaml:"footer_copyright"`
	AllowedDomains    []string `yaml:"allowed_link_domains"`
	BlockedShorteners []string `yaml:"blocked_shorteners"`
	MaxRotationDeg    float64  `yaml:"max_rotation_deg"`
	PaletteTolerance  float64  `yaml:"palette_tolerance"`
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Gateway.Server.Port == 0 {
		cfg.Gateway.Server.Port = 8080
	}
	if cfg.Identity.Server.Port == 0 {
		cfg.Identity.Server.Port = 8081
	}
	if cfg.Campaigns.Server.Port == 0 {
		cfg.Campaigns.Server.Port = 8082
	}
	if cfg.Validator.Server.Port == 0 {
		cfg.Validator.Server.Port = 8083
	}
	if cfg.Enhancer.Server.Port == 0 {
		cfg.Enhancer.Server.Port = 8084
	}
	for _, s := range []*ServerConfig{
		&cfg.Gateway.Server, &cfg.Identity.Server, &cfg.Campaigns.Server,
		&cfg.Validator.Server, &cfg.Enhancer.Server,
	} {
		if s.Host == "" {
			s.Host = "localhost"
		}
	}

	if cfg.Gateway.IdentityTimeoutSeconds == 0 {
		cfg.Gateway.IdentityTimeoutSeconds = 10
	}
	if cfg.Gateway.ProxyTimeoutSeconds == 0 {
		cfg.Gateway.ProxyTimeoutSeconds = 120
	}
	if cfg.Gateway.StreamTimeoutSeconds == 0 {
		cfg.Gateway.StreamTimeoutSeconds = 180
	}
	if cfg.Gateway.MaxBufferedBodyBytes == 0 {
		cfg.Gateway.MaxBufferedBodyBytes = 32 << 20 // 32 MiB
	}
	if cfg.Gateway.Services == nil {
		cfg.Gateway.Services = map[string]string{}
	}
	if cfg.Gateway.Services["identity"] == "" {
		cfg.Gateway.Services["identity"] = "http://localhost:8081"
	}
	if cfg.Gateway.Services["campaigns"] == "" {
		cfg.Gateway.Services["campaigns"] = "http://localhost:8082"
	}
	if cfg.Gateway.Services["validator"] == "" {
		cfg.Gateway.Services["validator"] = "http://localhost:8083"
	}
	if cfg.Gateway.Services["enhancer"] == "" {
		cfg.Gateway.Services["enhancer"] = "http://localhost:8084"
	}

	if cfg.Identity.AccessTTLMinutes == 0 {
		cfg.Identity.AccessTTLMinutes = 30
	}
	if cfg.Identity.RefreshTTLDays == 0 {
		cfg.Identity.RefreshTTLDays = 7
	}
	if cfg.Identity.BcryptCost == 0 {
		cfg.Identity.BcryptCost = 12
	}

	if cfg.Campaigns.MaxUploadBytes == 0 {
		cfg.Campaigns.MaxUploadBytes = 10 << 20 // 10 MiB
	}
	if cfg.Campaigns.CommentMaxLength == 0 {
		cfg.Campaigns.CommentMaxLength = 4000
	}

	if cfg.Validator.ToolTimeoutSeconds == 0 {
		cfg.Validator.ToolTimeoutSeconds = 30
	}
	if cfg.Validator.TotalTimeoutSeconds == 0 {
		cfg.Validator.TotalTimeoutSeconds = 120
	}
	if cfg.Validator.LegalCacheTTLMinutes == 0 {
		cfg.Validator.LegalCacheTTLMinutes = 60
	}
	if cfg.Validator.LegalTopK == 0 {
		cfg.Validator.LegalTopK = 5
	}
	if cfg.Validator.LegalHybridAlpha == 0 {
		cfg.Validator.LegalHybridAlpha = 0.5
	}
	if cfg.Validator.MaxImageBytes == 0 {
		cfg.Validator.MaxImageBytes = 5 << 20 // 5 MiB
	}

	if cfg.Enhancer.CacheTTLMinutes == 0 {
		cfg.Enhancer.CacheTTLMinutes = 24 * 60
	}
	if cfg.Enhancer.SessionHistory == 0 {
		cfg.Enhancer.SessionHistory = 5
	}

	if cfg.JWT.Algorithm == "" {
		cfg.JWT.Algorithm = "HS256"
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}

	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.Bedrock.EmbedModelID == "" {
		cfg.Bedrock.EmbedModelID = "amazon.titan-embed-text-v2:0"
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 2000
	}
	if cfg.Bedrock.TimeoutSeconds == 0 {
		cfg.Bedrock.TimeoutSeconds = 60
	}

	if cfg.RateLimit.Global.Requests == 0 {
		cfg.RateLimit.Global = RateLimitRule{Requests: 300, Per: "minute"}
	}

	if cfg.Brand.PaletteTolerance == 0 {
		cfg.Brand.PaletteTolerance = 40
	}
	if cfg.Brand.MinFontSizePx == 0 {
		cfg.Brand.MinFontSizePx = 12
	}
	if cfg.Brand.ContainerMaxWidth == 0 {
		cfg.Brand.ContainerMaxWidth = 600
	}
	if cfg.Brand.MaxRotationDeg == 0 {
		cfg.Brand.MaxRotationDeg = 5
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is loaded first (if present) so secrets can live in .env
// locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
		cfg.Bedrock.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	for _, svc := range []string{"identity", "campaigns", "validator", "enhancer"} {
		if v := os.Getenv("SERVICE_URL_" + strings.ToUpper(svc)); v != "" {
			cfg.Gateway.Services[svc] = v
		}
	}
	// CORS origins accept a JSON array ('["https://a","https://b"]') or a
	// comma-separated list.
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Gateway.CORSOrigins = parseOrigins(v)
	}

	return cfg, nil
}

func parseOrigins(v string) []string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") {
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
