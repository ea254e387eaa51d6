package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		Path string `yaml:"path"`
	} `yaml:"db"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"auth"`
	Settlement struct {
		// Treasury is the identity entitled to the fee leg of every
		// settlement. Supplied treasury accounts must belong to it.
		Treasury       string `yaml:"treasury"`
		FeeDenominator uint32 `yaml:"fee_denominator"`
	} `yaml:"settlement"`
	AMM struct {
		// SwapFeeBps is the pool input fee in basis points, applied by
		// newly created pools.
		SwapFeeBps uint32 `yaml:"swap_fee_bps"`
	} `yaml:"amm"`
}

// Load reads the yaml config at path, falling back to CONFIG_PATH and then
// configs/config.yaml, and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	applyEnv(cfg)

	if cfg.Settlement.Treasury == "" {
		return nil, errors.New("settlement.treasury is not configured")
	}
	if cfg.Settlement.FeeDenominator == 0 {
		return nil, errors.New("settlement.fee_denominator must be positive")
	}
	return cfg, nil
}

// Default returns the built-in configuration, matching the values the
// simulation seeds.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.DB.Path = "settlement.db"
	cfg.Auth.JWTSecret = "paydefi-secret-key"
	cfg.Auth.APIKey = "test-api-key"
	cfg.Auth.APISecret = "test-api-secret"
	cfg.Settlement.FeeDenominator = 10000
	cfg.AMM.SwapFeeBps = 25
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("TREASURY_ADDRESS"); v != "" {
		cfg.Settlement.Treasury = v
	}
	if v := os.Getenv("SWAP_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.AMM.SwapFeeBps = uint32(bps)
		}
	}
}
