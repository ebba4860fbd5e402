package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSearchQuery_MatchAll(t *testing.T) {
	q := buildSearchQuery("", "", []string{"title"})
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, q)
}

func TestBuildSearchQuery_TextAndStatus(t *testing.T) {
	q := buildSearchQuery("plastic", "pending", []string{"description"})
	b := q["bool"].(map[string]any)

	must := b["must"].([]map[string]any)
	assert.Len(t, must, 1)
	mm := must[0]["multi_match"].(map[string]any)
	assert.Equal(t, "plastic", mm["query"])

	filter := b["filter"].([]map[string]any)
	assert.Equal(t, map[string]any{"term": map[string]any{"status": "pending"}}, filter[0])
}

func TestSearchBody_ScoreFirstForTextSearch(t *testing.T) {
	body := searchBody(map[string]any{}, true, 0)
	sort := body["sort"].([]map[string]any)
	assert.Contains(t, sort[0], "_score")
	assert.Equal(t, 50, body["size"])

	body = searchBody(map[string]any{}, false, 10)
	sort = body["sort"].([]map[string]any)
	assert.Contains(t, sort[0], "createdAt")
	assert.Equal(t, 10, body["size"])
}
