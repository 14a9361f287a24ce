package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the market feed service.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`

	// Upstream page URLs (configurable for testing)
	NetBuyURL    string `mapstructure:"net_buy_url"`
	PopularURL   string `mapstructure:"popular_url"`
	ThemeURL     string `mapstructure:"theme_url"`
	PriceBaseURL string `mapstructure:"price_base_url"`

	// Pacing between sequential watchlist price fetches
	PriceFetchDelay time.Duration `mapstructure:"price_fetch_delay"`

	// News backend
	NewsBaseURL string `mapstructure:"news_base_url"`
	NewsAPIKey  string `mapstructure:"news_api_key"`

	// Kiwoom chart API. Credentials are validated lazily when the chart
	// route is exercised, not at boot.
	KiwoomChartAPIURL string `mapstructure:"kiwoom_chart_api_url"`
	KiwoomChartAPIID  string `mapstructure:"kiwoom_chart_api_id"`
	KiwoomAuthBaseURL string `mapstructure:"kiwoom_auth_base_url"`
	KiwoomTokenURL    string `mapstructure:"kiwoom_token_url"`
	KiwoomAppKey      string `mapstructure:"kiwoom_app_key"`
	KiwoomAppSecret   string `mapstructure:"kiwoom_app_secret"`
	KiwoomAccessToken string `mapstructure:"kiwoom_access_token"`
}

// Load reads configuration from environment variables and optional config file.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("") // No prefix, use full names
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("net_buy_url", "https://finance.naver.com/sise/sise_deal_rank.naver?investor_gubun=9000&type=buy")
	v.SetDefault("popular_url", "https://finance.naver.com/sise/lastsearch2.naver")
	v.SetDefault("theme_url", "https://finance.naver.com/sise/theme.naver")
	v.SetDefault("price_base_url", "https://finance.naver.com/item/sise.naver")
	v.SetDefault("price_fetch_delay", 120*time.Millisecond)

	v.SetDefault("news_base_url", "https://stock-lab-backend-repo.onrender.com")

	v.SetDefault("kiwoom_auth_base_url", "https://openapi.kiwoom.com:9443")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.marketfeed")
	_ = v.ReadInConfig()

	v.BindEnv("listen_addr", "LISTEN_ADDR")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("net_buy_url", "NET_BUY_URL")
	v.BindEnv("popular_url", "POPULAR_URL")
	v.BindEnv("theme_url", "THEME_URL")
	v.BindEnv("price_base_url", "PRICE_BASE_URL")
	v.BindEnv("price_fetch_delay", "PRICE_FETCH_DELAY")
	v.BindEnv("news_base_url", "NEWS_API_BASE_URL")
	v.BindEnv("news_api_key", "NEWS_API_KEY")
	v.BindEnv("kiwoom_chart_api_url", "KIWOOM_CHART_API_URL")
	v.BindEnv("kiwoom_chart_api_id", "KIWOOM_CHART_API_ID")
	v.BindEnv("kiwoom_auth_base_url", "KIWOOM_AUTH_BASE_URL")
	v.BindEnv("kiwoom_token_url", "KIWOOM_TOKEN_URL")
	v.BindEnv("kiwoom_app_key", "KIWOOM_APP_KEY")
	v.BindEnv("kiwoom_app_secret", "KIWOOM_APP_SECRET")
	v.BindEnv("kiwoom_access_token", "KIWOOM_ACCESS_TOKEN")

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// ResolvedKiwoomTokenURL returns the explicit token URL when set, otherwise
// the token path under the auth base URL.
func (c *Config) ResolvedKiwoomTokenURL() string {
	if url := strings.TrimSpace(c.KiwoomTokenURL); url != "" {
		return url
	}
	return strings.TrimRight(strings.TrimSpace(c.KiwoomAuthBaseURL), "/") + "/oauth2/tokenP"
}

// MissingKiwoomVars lists the Kiwoom configuration values required for the
// chart operation that are not set. A static access token removes the need
// for the app key/secret pair.
func (c *Config) MissingKiwoomVars() []string {
	var missing []string
	if strings.TrimSpace(c.KiwoomChartAPIURL) == "" {
		missing = append(missing, "KIWOOM_CHART_API_URL")
	}
	if strings.TrimSpace(c.KiwoomChartAPIID) == "" {
		missing = append(missing, "KIWOOM_CHART_API_ID")
	}
	if strings.TrimSpace(c.KiwoomAccessToken) == "" {
		if strings.TrimSpace(c.KiwoomAppKey) == "" {
			missing = append(missing, "KIWOOM_APP_KEY")
		}
		if strings.TrimSpace(c.KiwoomAppSecret) == "" {
			missing = append(missing, "KIWOOM_APP_SECRET")
		}
	}
	return missing
}
