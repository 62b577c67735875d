package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "ODATAGATE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	BasePath string `mapstructure:"base_path" validate:"required,startswith=/,ne=/,ne=/api"`
	Mode     string `mapstructure:"mode" validate:"oneof=debug release test"`
}

type SchemaConfig struct {
	Container string `mapstructure:"container" validate:"required"`
	// пусто: без справочников
	EnumsDir      string `mapstructure:"enums_dir"`
	EnumNamespace string `mapstructure:"enum_namespace" validate:"required"`
}

type DatabaseConfig struct {
	// пусто: in-memory
	URL         string `mapstructure:"url" validate:"omitempty,url"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_path", "/odata")
	v.SetDefault("server.mode", "release")
	v.SetDefault("schema.container", "Container")
	v.SetDefault("schema.enums_dir", "")
	v.SetDefault("schema.enum_namespace", "org.sample")
	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// flag -> ключ конфигурации
var flagKeys = map[string]string{
	"port":           "server.port",
	"base-path":      "server.base_path",
	"mode":           "server.mode",
	"container":      "schema.container",
	"enums":          "schema.enums_dir",
	"enum-namespace": "schema.enum_namespace",
	"db":             "database.url",
	"auto-migrate":   "database.auto_migrate",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// RegisterFlags добавляет флаги; значения по умолчанию живут в viper.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to config file (yaml/json/toml)")
	fs.Int("port", 8080, "HTTP port")
	fs.String("base-path", "/odata", "Service root path")
	fs.String("mode", "release", "gin mode (debug/release/test)")
	fs.String("container", "Container", "Entity container name")
	fs.String("enums", "", "Path to enums directory")
	fs.String("enum-namespace", "org.sample", "Namespace for catalog enums")
	fs.String("db", "", "Postgres URL (empty = in-memory)")
	fs.Bool("auto-migrate", false, "Apply generated DDL on start")
	fs.String("log-level", "info", "Log level (debug/info/warn/error)")
	fs.String("log-format", "json", "Log format (json/console)")
}

// Load: defaults -> файл -> ENV (ODATAGATE_SERVER_PORT ...) -> флаги.
// fs может быть nil; флаги учитываются, только если заданы явно.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", flag)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "read config %s", f.Value.String())
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.Server.BasePath = strings.TrimRight(cfg.Server.BasePath, "/")
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = "/"
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
