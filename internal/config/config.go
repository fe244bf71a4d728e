package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	// TrustedProxies decides which X-Forwarded-For hops feed ClientIP, which
	// keys rate limits and is recorded on sessions.
	TrustedProxies []string
}

type PostgresConfig struct {
	DSN              string
	MaxOpen          int
	MaxIdle          int
	ConnMaxLifetime  time.Duration
	StatementTimeout time.Duration
	ApplicationName  string
	AutoMigrate      bool
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type StorageConfig struct {
	Endpoint          string
	AccessKey         string
	SecretKey         string
	BucketAttachments string
	UseSSL            bool
	Region            string
	MaxUploadBytes    int64
}

type SecurityConfig struct {
	JWTIssuer          string
	JWTAccessSecret    string
	JWTAccessTTL       time.Duration
	RefreshTokenTTL    time.Duration
	MaxSessions        int
	SessionIdleTimeout time.Duration
}

// OTPConfig drives the password reset flow.
type OTPConfig struct {
	ExpiryMinutes    int
	Digits           int
	Secret           string
	ResetGraceWindow time.Duration
	RequestLimit     int
	RequestWindow    time.Duration
}

// PasswordPolicyConfig mirrors security.PasswordPolicy. Pattern is RE2 syntax,
// so character class requirements are separate flags.
type PasswordPolicyConfig struct {
	MinLength      int
	MaxLength      int
	Pattern        string
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	Message        string
}

type SMSConfig struct {
	Driver     string
	GatewayURL string
	APIKey     string
	SenderID   string
}

type EmailConfig struct {
	Driver   string
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      string
}

type NotifyConfig struct {
	DeliveryTimeout time.Duration
	SMS             SMSConfig
	Email           EmailConfig
}

type AuditConfig struct {
	Brokers []string
	Topic   string
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxDeliveries int64
}

// RateLimitConfig bounds unauthenticated auth and reset requests per client IP.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	OTP              OTPConfig
	PasswordPolicy   PasswordPolicyConfig
	Notify           NotifyConfig
	Audit            AuditConfig
	Worker           WorkerConfig
	RateLimit        RateLimitConfig
	AllowCORSOrigins []string
}

// OTPExpiry is the lifetime of an issued reset code.
func (c OTPConfig) OTPExpiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

func Load() (*AppConfig, error) {
	// .env only fills variables that are not already set.
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("HCADMIN")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.OTP.Digits < 4 || c.OTP.Digits > 6 {
		return fmt.Errorf("otp.digits must be between 4 and 6, got %d", c.OTP.Digits)
	}
	if c.OTP.ExpiryMinutes <= 0 {
		return fmt.Errorf("otp.expiryminutes must be positive")
	}
	if c.PasswordPolicy.MinLength <= 0 || c.PasswordPolicy.MaxLength < c.PasswordPolicy.MinLength {
		return fmt.Errorf("invalid password policy length bounds %d..%d", c.PasswordPolicy.MinLength, c.PasswordPolicy.MaxLength)
	}
	if c.Environment == "production" {
		if c.Security.JWTAccessSecret == "" {
			return fmt.Errorf("security.jwtaccesssecret is required in production")
		}
		if c.OTP.Secret == "" {
			return fmt.Errorf("otp.secret is required in production")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.readheadertimeout", "5s")
	v.SetDefault("http.writetimeout", "45s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.statementtimeout", "15s")
	v.SetDefault("postgres.applicationname", "hcadmin")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.dialtimeout", "5s")

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.bucketattachments", "hcadmin-attachments")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxuploadbytes", 10<<20)

	v.SetDefault("security.jwtissuer", "hcadmin")
	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.refreshtokenttl", "720h") // 30 days
	v.SetDefault("security.maxsessions", 10)
	v.SetDefault("security.sessionidletimeout", "72h")

	v.SetDefault("otp.expiryminutes", 5)
	v.SetDefault("otp.digits", 6)
	v.SetDefault("otp.resetgracewindow", "10m")
	v.SetDefault("otp.requestlimit", 3)
	v.SetDefault("otp.requestwindow", "10m")

	v.SetDefault("passwordpolicy.minlength", 8)
	v.SetDefault("passwordpolicy.maxlength", 64)
	v.SetDefault("passwordpolicy.pattern", `^[\x21-\x7E]+$`)
	v.SetDefault("passwordpolicy.requireupper", true)
	v.SetDefault("passwordpolicy.requirelower", true)
	v.SetDefault("passwordpolicy.requiredigit", true)
	v.SetDefault("passwordpolicy.requirespecial", true)
	v.SetDefault("passwordpolicy.message", "Password must be 8-64 characters and contain upper and lower case letters, a digit and a special character.")

	v.SetDefault("notify.deliverytimeout", "30s")
	v.SetDefault("notify.sms.driver", "log")
	v.SetDefault("notify.sms.senderid", "HCADMN")
	v.SetDefault("notify.email.driver", "log")
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.tls", "opportunistic")

	v.SetDefault("audit.topic", "hcadmin.auth-events")

	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.maxrequests", 20)

	v.SetDefault("worker.stream", "hcadmin:maintenance")
	v.SetDefault("worker.group", "hcadmin-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "10s")
	v.SetDefault("worker.maxdeliveries", 5)
}
