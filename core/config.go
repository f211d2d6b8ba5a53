package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Storage & vault engines
const (
	EngineMemory   = "memory"
	EngineSQLite   = "sqlite3"
	EnginePostgres = "postgres"
	EngineRedis    = "redis"
	EngineFile     = "file"
)

type (
	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		RollbarToken string

		Log     LogConfig
		API     APIConfig
		Content ContentConfig
		Storage StorageConfig
		Vault   VaultConfig
		Users   UsersConfig
		Server  ServerConfig
	}

	LogConfig struct {
		Level  string // debug | info | warn | error
		Format string // json | console
	}

	APIConfig struct {
		SecureBaseURL  string
		PlainBaseURL   string
		GatewayBaseURL string
		FeesBaseURL    string
		Timeout        time.Duration
		ProbeTimeout   time.Duration
		RetryCount     int
		AppVersion     string
		DeviceType     string
		Source         string
	}

	ContentConfig struct {
		PageSize    int
		AutoRefresh time.Duration
	}

	StorageConfig struct {
		Engine        string
		Dir           string
		DSN           string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		RedisPrefix   string
	}

	VaultConfig struct {
		Engine     string
		Path       string
		Passphrase string
	}

	UsersConfig struct {
		Max int // children per device
	}

	ServerConfig struct {
		Address            string
		SecretKey          string
		JWTExpirationDelta time.Duration
	}
)

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "SchoolConnect")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("api.secureBaseURL", "https://pinnacleapp.in/SchoolConnect/rest/school/v1")
	v.SetDefault("api.plainBaseURL", "http://pinnacleapp.in/SchoolConnect/rest/school/v1")
	v.SetDefault("api.gatewayBaseURL", "https://pinnacleeasebuzz.in/config")
	v.SetDefault("api.feesBaseURL", "http://pinnacleapp.in/Fees/rest/fees/v1")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.probeTimeout", 5*time.Second)
	v.SetDefault("api.retryCount", 0)
	v.SetDefault("api.appVersion", "1.0.17.1")
	v.SetDefault("api.deviceType", "p_android")
	v.SetDefault("api.source", "APP")

	v.SetDefault("content.pageSize", 10)
	v.SetDefault("content.autoRefresh", 5*time.Minute)

	v.SetDefault("storage.engine", EngineSQLite)
	v.SetDefault("storage.dir", filepath.Join(".", "data"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.redisAddr", "127.0.0.1:6379")
	v.SetDefault("storage.redisPassword", "")
	v.SetDefault("storage.redisDB", 0)
	v.SetDefault("storage.redisPrefix", "schoolconnect:")

	v.SetDefault("vault.engine", EngineFile)
	v.SetDefault("vault.path", filepath.Join(".", "data", "users.vault"))
	v.SetDefault("vault.passphrase", "")

	v.SetDefault("users.max", 3)

	v.SetDefault("server.address", "127.0.0.1:8765")
	v.SetDefault("server.secretKey", "")
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` and the environment.
// ENV selects the environment (DEV by default) and is used as the env var prefix: DEV_API_TIMEOUT=10s.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		API: APIConfig{
			SecureBaseURL:  v.GetString("api.secureBaseURL"),
			PlainBaseURL:   v.GetString("api.plainBaseURL"),
			GatewayBaseURL: v.GetString("api.gatewayBaseURL"),
			FeesBaseURL:    v.GetString("api.feesBaseURL"),
			Timeout:        v.GetDuration("api.timeout"),
			ProbeTimeout:   v.GetDuration("api.probeTimeout"),
			RetryCount:     v.GetInt("api.retryCount"),
			AppVersion:     v.GetString("api.appVersion"),
			DeviceType:     v.GetString("api.deviceType"),
			Source:         v.GetString("api.source"),
		},
		Content: ContentConfig{
			PageSize:    v.GetInt("content.pageSize"),
			AutoRefresh: v.GetDuration("content.autoRefresh"),
		},
		Storage: StorageConfig{
			Engine:        strings.ToLower(v.GetString("storage.engine")),
			Dir:           v.GetString("storage.dir"),
			DSN:           v.GetString("storage.dsn"),
			RedisAddr:     v.GetString("storage.redisAddr"),
			RedisPassword: v.GetString("storage.redisPassword"),
			RedisDB:       v.GetInt("storage.redisDB"),
			RedisPrefix:   v.GetString("storage.redisPrefix"),
		},
		Vault: VaultConfig{
			Engine:     strings.ToLower(v.GetString("vault.engine")),
			Path:       v.GetString("vault.path"),
			Passphrase: v.GetString("vault.passphrase"),
		},
		Users: UsersConfig{
			Max: v.GetInt("users.max"),
		},
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			SecretKey:          v.GetString("server.secretKey"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	switch c.Storage.Engine {
	case EngineMemory, EngineSQLite, EnginePostgres, EngineRedis:
	default:
		return errors.Errorf("unknown storage engine %q", c.Storage.Engine)
	}
	switch c.Vault.Engine {
	case EngineMemory, EngineFile:
	default:
		return errors.Errorf("unknown vault engine %q", c.Vault.Engine)
	}
	if c.Content.PageSize <= 0 {
		return errors.Errorf("content page size must be positive (got %d)", c.Content.PageSize)
	}
	if c.Storage.Engine == EnginePostgres && c.Storage.DSN == "" {
		return errors.New("storage DSN is required for the postgres engine")
	}
	return nil
}

// LoginTimeout bounds a whole login round: one Timeout for each configured content host.
func (c APIConfig) LoginTimeout() time.Duration {
	hosts := 0
	for _, host := range []string{c.SecureBaseURL, c.PlainBaseURL} {
		if CleanString(host) != "" {
			hosts++
		}
	}
	if hosts == 0 {
		hosts = 1
	}
	return time.Duration(hosts) * c.Timeout
}
