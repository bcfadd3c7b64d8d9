package research

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"domainscout/research/internal/fetcher"
	"domainscout/research/internal/gate"
	"domainscout/research/internal/pipeline"
	"domainscout/research/internal/registry"
	"domainscout/research/internal/serp"
	"domainscout/research/internal/whois"
)

// Config configures the research service. Zero values get sensible
// defaults; the provider sections default to the RapidAPI endpoints with
// credentials drawn from SERP_API_KEY and WHOIS_API_KEY at request time.
type Config struct {
	Gate     gate.Config     `yaml:"gate"`
	Fetch    fetcher.Config  `yaml:"fetch"`
	Search   serp.Config     `yaml:"search"`
	Whois    whois.Config    `yaml:"whois"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	Registry registry.Config `yaml:"registry"`
}

func (c *Config) defaults() {
	if c.Search.URLTemplate == "" {
		c.Search.URLTemplate = "https://google-search116.p.rapidapi.com/?query={query}&gl=US"
	}
	if c.Search.Headers == nil {
		c.Search.Headers = map[string]string{
			"x-rapidapi-key":  "${SERP_API_KEY}",
			"x-rapidapi-host": "google-search116.p.rapidapi.com",
		}
	}
	if c.Whois.Endpoint == "" {
		c.Whois.Endpoint = "https://whois-api6.p.rapidapi.com/whois/api/v1/getData"
	}
	if c.Whois.Headers == nil {
		c.Whois.Headers = map[string]string{
			"x-rapidapi-key":  "${WHOIS_API_KEY}",
			"x-rapidapi-host": "whois-api6.p.rapidapi.com",
		}
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("research: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("research: parse config: %w", err)
	}
	cfg.defaults()
	return &cfg, nil
}
