package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	// Path is used by the sqlite driver only.
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ConfigSchema struct {
	Databases struct {
		Driver   string     `yaml:"driver"` // postgres | sqlite
		Master   DBConfig   `yaml:"master"`
		Replicas []DBConfig `yaml:"replicas"`
	} `yaml:"databases"`
	Redis    RedisConfig `yaml:"redis"`
	RabbitMQ struct {
		URL string `yaml:"url"`
	} `yaml:"rabbitmq"`
	Backend struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"backend"`
	Logs struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json
	} `yaml:"logs"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Media struct {
		Endpoint  string `yaml:"endpoint"`
		Region    string `yaml:"region"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"media"`
	Limits struct {
		MessageSendRPS int `yaml:"message_send_rps"`
	} `yaml:"limits"`
	Governance struct {
		DefaultQuorum     float64       `yaml:"default_quorum"`
		VotingPeriod      time.Duration `yaml:"voting_period"`
		FinalizerInterval time.Duration `yaml:"finalizer_interval"`
	} `yaml:"governance"`
}

var AppConfig *ConfigSchema

// Default returns a configuration that runs locally on a sqlite file without
// Redis, RabbitMQ or S3.
func Default() *ConfigSchema {
	conf := &ConfigSchema{}
	conf.Databases.Driver = "sqlite"
	conf.Databases.Master.Path = "creaverse.db"
	conf.Backend.Host = "0.0.0.0"
	conf.Backend.Port = 8080
	conf.Logs.Level = "info"
	conf.Logs.Format = "text"
	conf.Auth.JWTSecret = "change-me"
	conf.Auth.TokenTTL = 24 * time.Hour
	conf.Limits.MessageSendRPS = 5
	conf.Governance.DefaultQuorum = 10
	conf.Governance.VotingPeriod = 72 * time.Hour
	conf.Governance.FinalizerInterval = time.Minute
	return conf
}

// LoadConfig reads the YAML file on top of Default, then applies .env and
// CREAVERSE_* environment overrides. The result is stored in AppConfig.
func LoadConfig(filePath string) error {
	conf, err := Parse(filePath)
	if err != nil {
		return err
	}
	AppConfig = conf
	return nil
}

func Parse(filePath string) (*ConfigSchema, error) {
	conf := Default()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	// .env is optional
	if err = godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err = applyEnv(conf); err != nil {
		return nil, err
	}
	return conf, conf.Validate()
}

func applyEnv(conf *ConfigSchema) error {
	strVars := map[string]*string{
		"CREAVERSE_DB_DRIVER":     &conf.Databases.Driver,
		"CREAVERSE_DB_HOST":       &conf.Databases.Master.Host,
		"CREAVERSE_DB_USER":       &conf.Databases.Master.User,
		"CREAVERSE_DB_PASSWORD":   &conf.Databases.Master.Password,
		"CREAVERSE_DB_NAME":       &conf.Databases.Master.DBName,
		"CREAVERSE_DB_PATH":       &conf.Databases.Master.Path,
		"CREAVERSE_REDIS_HOST":    &conf.Redis.Host,
		"CREAVERSE_REDIS_PASS":    &conf.Redis.Password,
		"CREAVERSE_RABBITMQ_URL":  &conf.RabbitMQ.URL,
		"CREAVERSE_JWT_SECRET":    &conf.Auth.JWTSecret,
		"CREAVERSE_S3_ACCESS_KEY": &conf.Media.AccessKey,
		"CREAVERSE_S3_SECRET_KEY": &conf.Media.SecretKey,
		"CREAVERSE_LOG_LEVEL":     &conf.Logs.Level,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"CREAVERSE_DB_PORT":      &conf.Databases.Master.Port,
		"CREAVERSE_REDIS_PORT":   &conf.Redis.Port,
		"CREAVERSE_BACKEND_PORT": &conf.Backend.Port,
	}
	for name, dst := range intVars {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}
	return nil
}

func (c *ConfigSchema) Validate() error {
	switch c.Databases.Driver {
	case "postgres":
		if c.Databases.Master.Host == "" {
			return errors.New("master database host is missing")
		}
	case "sqlite":
		if c.Databases.Master.Path == "" {
			return errors.New("sqlite path is missing")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Databases.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Governance.VotingPeriod <= 0 || c.Governance.FinalizerInterval <= 0 {
		return errors.New("governance.voting_period and governance.finalizer_interval must be positive")
	}
	return nil
}

// RedisEnabled reports whether a Redis host is configured.
func (c *ConfigSchema) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// MediaEnabled reports whether S3 uploads are configured.
func (c *ConfigSchema) MediaEnabled() bool {
	return c.Media.Bucket != "" && c.Media.Endpoint != ""
}
