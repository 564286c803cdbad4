package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xela07ax/riemann-mysql/internal/domain"
)

// DefaultConfigPath: путь конфигурации по умолчанию (совместим со старым агентом).
const DefaultConfigPath = "/etc/riemann-mysql.conf"

// EnvPrefix задает префикс переменных окружения, RIEMANN_MYSQL_INTERVAL=10 перекроет interval.
const EnvPrefix = "RIEMANN_MYSQL"

// Транспорты коллектора.
const (
	ProtoTCP = "tcp"
	ProtoUDP = "udp"
	ProtoTLS = "tls"
)

// Config: корневая структура конфигурации агента. Загружается один раз при старте
// и дальше только читается. Ключи плоские, как в старом формате key = value.
type Config struct {
	MySQL   MySQLConfig   `mapstructure:",squash"`
	Riemann RiemannConfig `mapstructure:",squash"`
	Agent   AgentConfig   `mapstructure:",squash"`
	Logger  LoggerConfig  `mapstructure:",squash"`
}

// MySQLConfig описывает подключение к наблюдаемой реплике.
type MySQLConfig struct {
	Host     string `mapstructure:"mysql_host"`
	Port     int    `mapstructure:"mysql_port"`
	User     string `mapstructure:"mysql_user"`
	Password string `mapstructure:"mysql_password"`
	Database string `mapstructure:"mysql_database"` // Пусто: без базы по умолчанию
}

// RiemannConfig описывает коллектор и транспорт до него.
type RiemannConfig struct {
	Host       string        `mapstructure:"riemann_host"`
	Port       int           `mapstructure:"riemann_port"`
	Proto      string        `mapstructure:"riemann_proto"` // tcp, udp, tls
	Ack        bool          `mapstructure:"riemann_ack"`
	AckTimeout time.Duration `mapstructure:"riemann_ack_timeout"`

	// TLS-материалы (только для tls)
	CAFile     string `mapstructure:"riemann_ca_file"`
	CertFile   string `mapstructure:"riemann_cert_file"`
	KeyFile    string `mapstructure:"riemann_key_file"`
	ServerName string `mapstructure:"riemann_server_name"`
	Insecure   bool   `mapstructure:"riemann_insecure"`
	CA         []byte `mapstructure:"-"`
	Cert       []byte `mapstructure:"-"`
	Key        []byte `mapstructure:"-"`
}

// AgentConfig: параметры цикла и содержимое событий.
type AgentConfig struct {
	Interval    int      `mapstructure:"interval"` // секунды
	Delay       float64  `mapstructure:"delay"`    // секунды, запас для ttl
	Hostname    string   `mapstructure:"hostname"`
	Tags        []string `mapstructure:"-"`
	MetricsAddr string   `mapstructure:"metrics_addr"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"log_level"`  // debug, info, warn, error
	Format string `mapstructure:"log_format"` // json, console
}

// IntervalDuration: интервал цикла в виде time.Duration.
func (c AgentConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Addr: адрес реплики в виде host:port.
func (c MySQLConfig) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

// LoadConfig читает файл (если он есть) и накладывает ENV поверх значений по умолчанию.
// required=false позволяет работать без файла по пути по умолчанию.
func LoadConfig(path string, required bool) (*Config, error) {
	v := viper.New()

	// 1. Формат определяется по расширению, все остальное: старый key = value
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))

	// 2. ENV перекрывает файл
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// 3. Дефолты (значения старого агента)
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		if required || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		// Файла нет: работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Теги в старом формате перечисляются через пробел, в yaml: списком
	cfg.Agent.Tags = v.GetStringSlice("tags")
	if cfg.Riemann.ServerName == "" {
		cfg.Riemann.ServerName = cfg.Riemann.Host
	}

	// 6. TLS-материалы из ENV или из файла
	var err error
	if cfg.Riemann.CA, err = loadKeyResource(cfg.Riemann.CAFile, EnvPrefix+"_CA_DATA"); err != nil {
		return nil, err
	}
	if cfg.Riemann.Cert, err = loadKeyResource(cfg.Riemann.CertFile, EnvPrefix+"_CERT_DATA"); err != nil {
		return nil, err
	}
	if cfg.Riemann.Key, err = loadKeyResource(cfg.Riemann.KeyFile, EnvPrefix+"_KEY_DATA"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mysql_host", "localhost")
	v.SetDefault("mysql_port", 3306)
	v.SetDefault("mysql_user", "root")
	v.SetDefault("mysql_password", "")
	v.SetDefault("mysql_database", "")
	v.SetDefault("riemann_host", "localhost")
	v.SetDefault("riemann_port", 5555)
	v.SetDefault("riemann_proto", ProtoTCP)
	v.SetDefault("riemann_ack", true)
	v.SetDefault("riemann_ack_timeout", 5*time.Second)
	v.SetDefault("riemann_ca_file", "")
	v.SetDefault("riemann_cert_file", "")
	v.SetDefault("riemann_key_file", "")
	v.SetDefault("riemann_server_name", "")
	v.SetDefault("riemann_insecure", false)
	v.SetDefault("interval", 30)
	v.SetDefault("delay", 2.0)
	v.SetDefault("hostname", "")
	v.SetDefault("tags", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

func configType(path string) string {
	switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext {
	case "yaml", "yml", "json", "toml":
		return ext
	default:
		return "dotenv"
	}
}

// Validate проверяет значения, без которых агент не может стартовать.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %d", c.Agent.Interval))
	}
	if c.Agent.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %g", c.Agent.Delay))
	}
	if len(c.Agent.Tags) > domain.MaxTags {
		errs = append(errs, fmt.Errorf("too many tags: %d (max %d)", len(c.Agent.Tags), domain.MaxTags))
	}
	if !validPort(c.MySQL.Port) {
		errs = append(errs, fmt.Errorf("invalid mysql_port %d", c.MySQL.Port))
	}
	if !validPort(c.Riemann.Port) {
		errs = append(errs, fmt.Errorf("invalid riemann_port %d", c.Riemann.Port))
	}
	switch c.Riemann.Proto {
	case ProtoTCP, ProtoUDP, ProtoTLS:
	default:
		errs = append(errs, fmt.Errorf("unsupported riemann_proto %q (tcp, udp, tls)", c.Riemann.Proto))
	}
	if (len(c.Riemann.Cert) == 0) != (len(c.Riemann.Key) == 0) {
		errs = append(errs, errors.New("riemann client certificate and key must be set together"))
	}
	if c.Riemann.Ack && c.Riemann.AckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("riemann_ack_timeout must be positive, got %s", c.Riemann.AckTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Redacted возвращает копию без секретов: для отладочного лога.
func (c Config) Redacted() Config {
	if c.MySQL.Password != "" {
		c.MySQL.Password = "xxxxx"
	}
	if len(c.Riemann.Key) > 0 {
		c.Riemann.Key = []byte("xxxxx")
	}
	return c
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
