package config

import "fmt"

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Registry      RegistryConfig          `mapstructure:"registry"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Workflow      WorkflowConfig          `mapstructure:"workflow"`
	Cache         CacheConfig             `mapstructure:"cache"`
	Server        ServerConfig            `mapstructure:"server"`
	Bootstrap     BootstrapConfig         `mapstructure:"bootstrap"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects the backing store for applications, orders and users.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres | memory
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type NotificationConfig struct {
	Transport          string            `mapstructure:"transport"` // sns | redis | log
	Region             string            `mapstructure:"region"`
	Topics             map[string]string `mapstructure:"topics"` // channel -> topic ARN
	RedisChannelPrefix string            `mapstructure:"redis_channel_prefix"`
}

type WorkflowConfig struct {
	CompensateOnConflict bool `mapstructure:"compensate_on_conflict"`
}

type CacheConfig struct {
	UserTTL int `mapstructure:"user_ttl"` // seconds
}

// BootstrapConfig names the administrator created at startup when no user has that login.
type BootstrapConfig struct {
	AdminLogin    string `mapstructure:"admin_login"`
	AdminPassword string `mapstructure:"admin_password"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
