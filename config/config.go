package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/logger"
	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/risk"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Ingestion
	ExecutionsFile string              // Broker execution report (CSV)
	RejectedFile   string              // Quarantined executions audit output (CSV)
	StrategySide   domain.StrategySide // Which order sides open positions

	// Account and risk
	AccountSize float64
	Risk        risk.Config
	Stoploss    risk.StoplossConfig

	// Backtesting
	TargetRiskReward   float64
	AllowShorts        bool
	BarsFile           string // Price bars import file (CSV)
	Symbol             string // Symbol to backtest
	TightnessThreshold float64
	WickRatioThreshold float64

	// Logging
	LogLevel logger.LogLevel
}

// riskPolicyFile is the on-disk layout of the YAML policy file: the risk
// budget parameters and the stop policy live together so a policy change is
// a single file edit.
type riskPolicyFile struct {
	Risk     risk.Config         `yaml:"risk"`
	Stoploss risk.StoplossConfig `yaml:"stoploss"`
}

// LoadConfig loads configuration from environment variables (.env file) and
// the YAML risk policy file named by RISK_POLICY_PATH.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/kairos.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Ingestion
	cfg.ExecutionsFile = getEnv("EXECUTIONS_FILE", "./data/executions.csv")
	cfg.RejectedFile = getEnv("REJECTED_FILE", "./data/rejected_executions.csv")
	cfg.BarsFile = getEnv("BARS_FILE", "./data/bars.csv")

	cfg.StrategySide = domain.StrategySide(getEnv("STRATEGY_SIDE", string(domain.SideLong)))
	if !cfg.StrategySide.IsValid() {
		errs = append(errs, fmt.Sprintf("invalid STRATEGY_SIDE %q (must be %q or %q)",
			cfg.StrategySide, domain.SideLong, domain.SideShort))
	}

	// Account and risk
	cfg.AccountSize, err = getEnvAsFloatRequired("ACCOUNT_SIZE", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_SIZE: %v", err))
	} else if cfg.AccountSize <= 0 {
		errs = append(errs, "ACCOUNT_SIZE must be positive")
	}

	policyPath := getEnv("RISK_POLICY_PATH", "./config/risk_policy.yaml")
	policy, policyErr := loadRiskPolicy(policyPath)
	if policyErr != nil {
		errs = append(errs, policyErr.Error())
	} else {
		cfg.Risk = policy.Risk
		cfg.Stoploss = policy.Stoploss
		if err := cfg.Risk.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("risk policy %s: %v", policyPath, err))
		}
		if err := cfg.Stoploss.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("stop policy %s: %v", policyPath, err))
		}
	}

	// Backtesting
	cfg.TargetRiskReward, err = getEnvAsFloatRequired("TARGET_RISK_REWARD", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TARGET_RISK_REWARD: %v", err))
	} else if cfg.TargetRiskReward <= 0 {
		errs = append(errs, "TARGET_RISK_REWARD must be positive")
	}
	cfg.AllowShorts = getEnvAsBool("ALLOW_SHORTS", false)
	cfg.Symbol = getEnv("SYMBOL", "")

	cfg.TightnessThreshold, err = getEnvAsFloatRequired("TIGHTNESS_THRESHOLD", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIGHTNESS_THRESHOLD: %v", err))
	} else if cfg.TightnessThreshold <= 0 || cfg.TightnessThreshold >= 1 {
		errs = append(errs, "TIGHTNESS_THRESHOLD must be between 0.0 and 1.0 (exclusive)")
	}
	cfg.WickRatioThreshold, err = getEnvAsFloatRequired("WICK_RATIO_THRESHOLD", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid WICK_RATIO_THRESHOLD: %v", err))
	} else if cfg.WickRatioThreshold <= 1 {
		errs = append(errs, "WICK_RATIO_THRESHOLD must exceed 1.0")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func loadRiskPolicy(path string) (*riskPolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read risk policy %s: %w", path, err)
	}
	var policy riskPolicyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse risk policy %s: %w", path, err)
	}
	return &policy, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
