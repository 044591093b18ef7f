package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StageLimits bounds one collector mode
type StageLimits struct {
	MaxRecords int `yaml:"max_records"`
	TopN       int `yaml:"top_n"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
		PipelineTimeout time.Duration `yaml:"pipeline_timeout" default:"5m"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	LLM struct {
		Provider      string        `yaml:"provider" default:"claude"`
		APIKey        string        `yaml:"api_key"`
		Model         string        `yaml:"model" default:"claude-3-5-haiku-latest"`
		AnalysisModel string        `yaml:"analysis_model" default:"claude-3-7-sonnet-latest"`
		MaxTokens     int           `yaml:"max_tokens" default:"8192"`
		Temperature   float32       `yaml:"temperature" default:"0.2"`
		Timeout       time.Duration `yaml:"timeout" default:"120s"`
	} `yaml:"llm"`

	Scraper struct {
		UserAgent          string        `yaml:"user_agent"`
		RequestTimeout     time.Duration `yaml:"request_timeout" default:"20s"`
		RateLimit          int           `yaml:"rate_limit" default:"1200"` // requests per minute per domain
		Burst              int           `yaml:"burst" default:"5"`
		DetailConcurrency  int           `yaml:"detail_concurrency" default:"5"`
		Engine             string        `yaml:"engine" default:"html"` // html, firecrawl or hybrid, for HTML marketplaces
		BlockedDomainsFile string        `yaml:"blocked_domains_file"`
		BrowserHandshake   bool          `yaml:"browser_handshake" default:"false"`
		HeadlessMode       bool          `yaml:"headless_mode" default:"true"`
	} `yaml:"scraper"`

	Firecrawl struct {
		APIKey string `yaml:"api_key"`
		APIURL string `yaml:"api_url" default:"https://api.firecrawl.dev"`
	} `yaml:"firecrawl"`

	Marketplaces struct {
		Sauto struct {
			BaseURL          string `yaml:"base_url" default:"https://www.sauto.cz"`
			CategoryID       int    `yaml:"category_id" default:"838"`
			DefaultCondition string `yaml:"default_condition" default:"ojete,predvadeci"`
		} `yaml:"sauto"`
		Bazos struct {
			BaseURL  string `yaml:"base_url" default:"https://auto.bazos.cz"`
			MaxPages int    `yaml:"max_pages" default:"10"`
		} `yaml:"bazos"`
		TipCars struct {
			BaseURL  string `yaml:"base_url" default:"https://www.tipcars.com"`
			MaxPages int    `yaml:"max_pages" default:"5"`
		} `yaml:"tipcars"`
	} `yaml:"marketplaces"`

	Pipeline struct {
		PageSize            int         `yaml:"page_size" default:"100"`
		Focus               StageLimits `yaml:"focus"`
		Broad               StageLimits `yaml:"broad"`
		Phrase              StageLimits `yaml:"phrase"`
		RankBatchSize       int         `yaml:"rank_batch_size" default:"10"`
		MinScore            int         `yaml:"min_score" default:"0"`
		FilterMaxListings   int         `yaml:"filter_max_listings" default:"200"`
		InspectorCandidates int         `yaml:"inspector_candidates" default:"15"`
		InspectorTopN       int         `yaml:"inspector_top_n" default:"3"`
		MaxImages           int         `yaml:"max_images" default:"8"`
	} `yaml:"pipeline"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`

	Credits struct {
		Enabled     bool   `yaml:"enabled" default:"false"`
		DatabaseURL string `yaml:"database_url"`
		Cost        int    `yaml:"cost" default:"1"`
	} `yaml:"credits"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`

	Redis struct {
		Enabled     bool          `yaml:"enabled" default:"false"`
		URL         string        `yaml:"url" default:"redis://localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db" default:"0"`
		Timeout     time.Duration `yaml:"timeout" default:"5s"`
		HistoryTTL  time.Duration `yaml:"history_ttl" default:"720h"`
		HistorySize int           `yaml:"history_size" default:"20"`
	} `yaml:"redis"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// Default returns a configuration populated with built-in defaults only
func Default() *Config {
	config := &Config{}

	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.IdleTimeout = 60 * time.Second
	config.Server.PipelineTimeout = 5 * time.Minute
	config.Server.AllowedOrigins = []string{"*"}

	config.LLM.Provider = "claude"
	config.LLM.Model = "claude-3-5-haiku-latest"
	config.LLM.AnalysisModel = "claude-3-7-sonnet-latest"
	config.LLM.MaxTokens = 8192
	config.LLM.Temperature = 0.2
	config.LLM.Timeout = 120 * time.Second

	config.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	config.Scraper.RequestTimeout = 20 * time.Second
	config.Scraper.RateLimit = 1200
	config.Scraper.Burst = 5
	config.Scraper.DetailConcurrency = 5
	config.Scraper.Engine = "html"
	config.Scraper.HeadlessMode = true

	config.Firecrawl.APIURL = "https://api.firecrawl.dev"

	config.Marketplaces.Sauto.BaseURL = "https://www.sauto.cz"
	config.Marketplaces.Sauto.CategoryID = 838
	config.Marketplaces.Sauto.DefaultCondition = "ojete,predvadeci"
	config.Marketplaces.Bazos.BaseURL = "https://auto.bazos.cz"
	config.Marketplaces.Bazos.MaxPages = 10
	config.Marketplaces.TipCars.BaseURL = "https://www.tipcars.com"
	config.Marketplaces.TipCars.MaxPages = 5

	config.Pipeline.PageSize = 100
	config.Pipeline.Focus = StageLimits{MaxRecords: 1000, TopN: 15}
	config.Pipeline.Broad = StageLimits{MaxRecords: 500, TopN: 20}
	config.Pipeline.Phrase = StageLimits{MaxRecords: 200, TopN: 20}
	config.Pipeline.RankBatchSize = 10
	config.Pipeline.FilterMaxListings = 200
	config.Pipeline.InspectorCandidates = 15
	config.Pipeline.InspectorTopN = 3
	config.Pipeline.MaxImages = 8

	config.Credits.Cost = 1

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.Timeout = 5 * time.Second
	config.Redis.HistoryTTL = 30 * 24 * time.Hour
	config.Redis.HistorySize = 20

	return config
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
			}
		}
	}

	config.loadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.LLM.Provider != "claude" {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.Pipeline.PageSize <= 0 {
		return fmt.Errorf("pipeline.page_size must be positive")
	}
	for name, limits := range map[string]StageLimits{
		"focus":  c.Pipeline.Focus,
		"broad":  c.Pipeline.Broad,
		"phrase": c.Pipeline.Phrase,
	} {
		if limits.MaxRecords <= 0 || limits.TopN <= 0 {
			return fmt.Errorf("pipeline.%s limits must be positive", name)
		}
	}
	if c.Pipeline.RankBatchSize <= 0 {
		return fmt.Errorf("pipeline.rank_batch_size must be positive")
	}
	if c.Pipeline.MinScore < 0 || c.Pipeline.MinScore > 100 {
		return fmt.Errorf("pipeline.min_score must be within 0-100")
	}
	if c.Pipeline.InspectorCandidates <= 0 || c.Pipeline.InspectorTopN <= 0 {
		return fmt.Errorf("pipeline inspector limits must be positive")
	}
	if c.Scraper.DetailConcurrency <= 0 {
		return fmt.Errorf("scraper.detail_concurrency must be positive")
	}
	switch c.Scraper.Engine {
	case "html", "firecrawl", "hybrid":
	default:
		return fmt.Errorf("unsupported scraper engine: %s", c.Scraper.Engine)
	}
	if c.Credits.Enabled && c.Credits.DatabaseURL == "" {
		return fmt.Errorf("credits.database_url is required when credits are enabled")
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		c.LLM.APIKey = apiKey
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if model := os.Getenv("LLM_ANALYSIS_MODEL"); model != "" {
		c.LLM.AnalysisModel = model
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if engine := os.Getenv("SCRAPER_ENGINE"); engine != "" {
		c.Scraper.Engine = engine
	}

	if concurrency := os.Getenv("SCRAPER_DETAIL_CONCURRENCY"); concurrency != "" {
		if n, err := strconv.Atoi(concurrency); err == nil {
			c.Scraper.DetailConcurrency = n
		}
	}

	if handshake := os.Getenv("SCRAPER_BROWSER_HANDSHAKE"); handshake != "" {
		c.Scraper.BrowserHandshake = handshake == "true" || handshake == "1"
	}

	if firecrawlAPIKey := os.Getenv("FIRECRAWL_API_KEY"); firecrawlAPIKey != "" {
		c.Firecrawl.APIKey = firecrawlAPIKey
	}

	if firecrawlAPIURL := os.Getenv("FIRECRAWL_API_URL"); firecrawlAPIURL != "" {
		c.Firecrawl.APIURL = firecrawlAPIURL
	}

	if minScore := os.Getenv("PIPELINE_MIN_SCORE"); minScore != "" {
		if n, err := strconv.Atoi(minScore); err == nil {
			c.Pipeline.MinScore = n
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}

	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		c.Auth.Issuer = issuer
	}

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		c.Credits.DatabaseURL = databaseURL
	}

	if creditsEnabled := os.Getenv("CREDITS_ENABLED"); creditsEnabled != "" {
		c.Credits.Enabled = creditsEnabled == "true" || creditsEnabled == "1"
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
		c.Redis.Enabled = true
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if redisTimeout := os.Getenv("REDIS_TIMEOUT"); redisTimeout != "" {
		if timeout, err := time.ParseDuration(redisTimeout); err == nil {
			c.Redis.Timeout = timeout
		}
	}

	c.loadLoggingAdapterEnvVars()
}

// loadLoggingAdapterEnvVars loads environment variables for logging adapters
func (c *Config) loadLoggingAdapterEnvVars() {
	for i := range c.Logging.Adapters {
		adapter := &c.Logging.Adapters[i]

		switch adapter.Type {
		case "file":
			if path := os.Getenv("LOG_FILE_PATH"); path != "" {
				if adapter.Options == nil {
					adapter.Options = make(map[string]interface{})
				}
				adapter.Options["file_path"] = path
			}
		}
	}
}
