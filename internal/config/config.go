package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultCatalogURL        = "https://docs.google.com/spreadsheets/d/e/2PACX-1vRZdZel2WEtgv4uS9ybI-MhrC_ChEM8ykP_G4H55ECaRzb8_kg3H12ySQsN7vGPP8CkJYJHndWawwI0/pub?gid=0&single=true&output=csv"
	defaultSaleFormURL       = "https://docs.google.com/forms/d/e/1FAIpQLSclmoUb_V44uk6AdT1bY9RDqJvRLvUeyMTCnRNRCXrz_KDkPQ/formResponse"
	defaultAdjustmentFormURL = "https://docs.google.com/forms/d/e/1FAIpQLSeTdAktfy1tm486oSh64FA7L7pTTgxaWH01-fDUSbSpJ6QV2g/formResponse"
)

type Config struct {
	Port                  string
	AppEnv                string
	LogLevel              string
	AllowedOrigin         string
	CatalogURL            string
	CatalogTimeoutSeconds int
	SaleFormURL           string
	AdjustmentFormURL     string
	SubmitTimeoutSeconds  int
	SubmitRemovalPolicy   string
	StoresFile            string
	AuthSecret            string
	AccessTokenTTLMinutes int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	FeedCacheTTLSeconds   int
	IntakeDriver          string
	IntakeDSN             string
	FallbackBrowser       bool
	BrowserBin            string
}

// Load reads the environment, optionally seeded from a .env or config.env
// file in the working directory. Environment variables win.
func Load() Config {
	v := viper.New()
	v.SetConfigType("env")
	for _, name := range []string{".env", "config.env"} {
		v.SetConfigFile(name)
		_ = v.MergeInConfig()
	}
	v.AutomaticEnv()

	cfg := Config{
		Port:                  getString(v, "PORT", "8080"),
		AppEnv:                getString(v, "APP_ENV", "development"),
		LogLevel:              getString(v, "LOG_LEVEL", "info"),
		AllowedOrigin:         getString(v, "ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		CatalogURL:            getString(v, "CATALOG_URL", defaultCatalogURL),
		CatalogTimeoutSeconds: getPositiveInt(v, "CATALOG_TIMEOUT_SECONDS", 15),
		SaleFormURL:           getString(v, "SALE_FORM_URL", defaultSaleFormURL),
		AdjustmentFormURL:     getString(v, "ADJUSTMENT_FORM_URL", defaultAdjustmentFormURL),
		SubmitTimeoutSeconds:  getPositiveInt(v, "SUBMIT_TIMEOUT_SECONDS", 10),
		SubmitRemovalPolicy:   strings.ToLower(getString(v, "SUBMIT_REMOVAL_POLICY", "prefix")),
		StoresFile:            getString(v, "STORES_FILE", ""),
		AuthSecret:            strings.TrimSpace(getString(v, "AUTH_SECRET", "")),
		AccessTokenTTLMinutes: getPositiveInt(v, "ACCESS_TOKEN_TTL_MINUTES", 720),
		RedisAddr:             getString(v, "REDIS_ADDR", ""),
		RedisPassword:         getString(v, "REDIS_PASSWORD", ""),
		RedisDB:               v.GetInt("REDIS_DB"),
		FeedCacheTTLSeconds:   v.GetInt("FEED_CACHE_TTL_SECONDS"),
		IntakeDriver:          strings.ToLower(getString(v, "INTAKE_DRIVER", "form")),
		IntakeDSN:             getString(v, "INTAKE_DSN", ""),
		FallbackBrowser:       v.GetBool("FALLBACK_BROWSER"),
		BrowserBin:            getString(v, "BROWSER_BIN", ""),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getString(v *viper.Viper, key string, fallback string) string {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(v *viper.Viper, key string, fallback int) int {
	if !v.IsSet(key) {
		return fallback
	}
	n := v.GetInt(key)
	if n < 1 {
		return fallback
	}
	return n
}
