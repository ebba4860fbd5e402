package config

import (
	"os"
	"time"
)

// ElasticsearchConfig содержит конфигурацию для подключения к Elasticsearch
type ElasticsearchConfig struct {
	Enabled      bool
	URL          string
	EventsIndex  string
	ReportsIndex string
	Username     string
	Password     string
	MaxRetries   int
	Timeout      time.Duration
}

// LoadElasticsearchConfig загружает конфигурацию Elasticsearch из переменных окружения
func LoadElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		Enabled:      getEnvBool("ELASTICSEARCH_ENABLED", true),
		URL:          getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		EventsIndex:  getEnv("ELASTICSEARCH_EVENTS_INDEX", "events"),
		ReportsIndex: getEnv("ELASTICSEARCH_REPORTS_INDEX", "reports"),
		Username:     os.Getenv("ELASTICSEARCH_USERNAME"),
		Password:     os.Getenv("ELASTICSEARCH_PASSWORD"),
		MaxRetries:   getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		Timeout:      getEnvDuration("ELASTICSEARCH_TIMEOUT", 30*time.Second),
	}
}
