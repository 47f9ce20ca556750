package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	DB       DBConfig       `mapstructure:"db"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Provider ProviderConfig `mapstructure:"provider"`
	Identity IdentityConfig `mapstructure:"identity"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AppHost  string         `mapstructure:"host"`
}

type DBConfig struct {
	Source string `mapstructure:"source" validate:"required"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" validate:"required"`
}

// ProviderConfig points at the remote storage provider that the local
// metadata mirror is reconciled against.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// IdentityConfig describes the external single-sign-on provider: the HTML
// login form, the cookie it sets with the opaque API token, and the
// member-directory API used to fetch the caller's profile. AllowedUnitID is
// the organizational unit whose members may use this application.
type IdentityConfig struct {
	LoginURL      string `mapstructure:"login_url" validate:"required,url"`
	ProfileURL    string `mapstructure:"profile_url" validate:"required,url"`
	TokenCookie   string `mapstructure:"token_cookie" validate:"required"`
	AllowedUnitID int64  `mapstructure:"allowed_unit_id" validate:"required"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

var validate = validator.New()

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
