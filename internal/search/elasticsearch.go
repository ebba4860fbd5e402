package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"shoreline/internal/config"
	"shoreline/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient представляет клиент для работы с Elasticsearch.
// It keeps full-text indexes of events and pollution reports.
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx, cfg.EventsIndex, eventsMapping()); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}
	if err := client.ensureIndex(ctx, cfg.ReportsIndex, reportsMapping()); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

func text() map[string]any {
	return map[string]any{"type": "text", "analyzer": "english"}
}

func keyword() map[string]any {
	return map[string]any{"type": "keyword"}
}

func date() map[string]any {
	return map[string]any{"type": "date", "format": "strict_date_optional_time||epoch_millis"}
}

func eventsMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{"number_of_shards": 1, "number_of_replicas": 0},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id": keyword(),
				"title": map[string]any{
					"type":     "text",
					"analyzer": "english",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
					},
				},
				"description": text(),
				"location": map[string]any{
					"properties": map[string]any{
						"name":      text(),
						"latitude":  map[string]any{"type": "double"},
						"longitude": map[string]any{"type": "double"},
					},
				},
				"date":          date(),
				"status":        keyword(),
				"organizerId":   keyword(),
				"volunteerIds":  keyword(),
				"maxVolunteers": map[string]any{"type": "integer"},
				"createdAt":     date(),
				"updatedAt":     date(),
			},
		},
	}
}

func reportsMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{"number_of_shards": 1, "number_of_replicas": 0},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":          keyword(),
				"reporterId":  keyword(),
				"description": text(),
				"location": map[string]any{
					"properties": map[string]any{
						"name":      text(),
						"latitude":  map[string]any{"type": "double"},
						"longitude": map[string]any{"type": "double"},
					},
				},
				"severity":  keyword(),
				"status":    keyword(),
				"createdAt": date(),
				"updatedAt": date(),
			},
		},
	}
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context, index string, mapping map[string]any) error {
	req := esapi.IndicesExistsRequest{Index: []string{index}}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", index)
		return nil
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", index)
	return nil
}

func (c *ElasticsearchClient) index(ctx context.Context, index, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

func (c *ElasticsearchClient) delete(ctx context.Context, index, id string) error {
	req := esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

func (c *ElasticsearchClient) search(ctx context.Context, index string, body map[string]any, into func(json.RawMessage) error) error {
	searchJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode search response: %w", err)
	}

	for _, hit := range response.Hits.Hits {
		if err := into(hit.Source); err != nil {
			return fmt.Errorf("failed to decode hit: %w", err)
		}
	}
	return nil
}

// buildSearchQuery строит поисковый запрос: full-text match plus an optional
// exact status filter.
func buildSearchQuery(query, status string, fields []string) map[string]any {
	var must []map[string]any
	if query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    fields,
				"fuzziness": "AUTO",
			},
		})
	}
	var filter []map[string]any
	if status != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"status": status}})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	b := map[string]any{}
	if len(must) > 0 {
		b["must"] = must
	}
	if len(filter) > 0 {
		b["filter"] = filter
	}
	return map[string]any{"bool": b}
}

func searchBody(query map[string]any, textSearch bool, size int) map[string]any {
	sort := []map[string]any{{"createdAt": map[string]any{"order": "desc"}}}
	if textSearch {
		sort = append([]map[string]any{{"_score": map[string]any{"order": "desc"}}}, sort...)
	}
	if size <= 0 {
		size = 50
	}
	return map[string]any{"query": query, "sort": sort, "size": size}
}

// IndexEvent индексирует событие
func (c *ElasticsearchClient) IndexEvent(ctx context.Context, event *models.Event) error {
	return c.index(ctx, c.config.EventsIndex, event.ID, event)
}

// DeleteEvent удаляет событие
func (c *ElasticsearchClient) DeleteEvent(ctx context.Context, id string) error {
	return c.delete(ctx, c.config.EventsIndex, id)
}

// SearchEvents выполняет поиск событий
func (c *ElasticsearchClient) SearchEvents(ctx context.Context, query, status string, size int) ([]models.Event, error) {
	q := buildSearchQuery(query, status, []string{"title^2", "description", "location.name"})
	events := []models.Event{}
	err := c.search(ctx, c.config.EventsIndex, searchBody(q, query != "", size), func(raw json.RawMessage) error {
		var e models.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		events = append(events, e)
		return nil
	})
	return events, err
}

func (c *ElasticsearchClient) IndexReport(ctx context.Context, report *models.Report) error {
	return c.index(ctx, c.config.ReportsIndex, report.ID, report)
}

func (c *ElasticsearchClient) DeleteReport(ctx context.Context, id string) error {
	return c.delete(ctx, c.config.ReportsIndex, id)
}

func (c *ElasticsearchClient) SearchReports(ctx context.Context, query, status string, size int) ([]models.Report, error) {
	q := buildSearchQuery(query, status, []string{"description^2", "location.name"})
	reports := []models.Report{}
	err := c.search(ctx, c.config.ReportsIndex, searchBody(q, query != "", size), func(raw json.RawMessage) error {
		var r models.Report
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		reports = append(reports, r)
		return nil
	})
	return reports, err
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
