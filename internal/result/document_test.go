package result

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuecompass/internal/ai"
	"issuecompass/internal/model"
)

func broadPage(prefix string, n int) *ai.BroadResponse {
	resp := &ai.BroadResponse{
		Roast:            prefix + " roast",
		Sources:          []string{prefix + " source"},
		PromptSuggestion: prefix + " prompt",
		BestModel:        prefix + " model",
	}
	for i := 0; i < n; i++ {
		resp.Suggestions = append(resp.Suggestions, ai.Suggestion{
			Title:       fmt.Sprintf("%s %d", prefix, i),
			Description: "desc",
		})
	}
	return resp
}

func details() *model.ItemDetails {
	return &model.ItemDetails{Analysis: "analysis", Steps: []string{"one", "two"}, Risks: "risks"}
}

func TestCreate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := Create("query", broadPage("p1", 3), now)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "query", doc.Query)
	assert.Equal(t, now, doc.CreatedAt)
	require.Len(t, doc.Items, 3)
	for i, item := range doc.Items {
		assert.Equal(t, fmt.Sprintf("p1 %d", i), item.Title)
		assert.NotEmpty(t, item.ID)
		assert.Nil(t, item.Details)
	}
	assert.Equal(t, "p1 roast", doc.Commentary)
	assert.Equal(t, []string{"p1 source"}, doc.Sources)

	other := Create("query", broadPage("p1", 1), now)
	assert.NotEqual(t, doc.ID, other.ID)
}

func TestAppendPageIsAppendOnly(t *testing.T) {
	doc := Create("query", broadPage("p1", 2), time.Now())
	doc, ok := AttachDetail(doc, doc.Items[0].ID, details())
	require.True(t, ok)
	before := doc

	next := AppendPage(doc, broadPage("p2", 2))

	assert.Equal(t, doc.ID, next.ID)
	assert.Equal(t, doc.Version+1, next.Version)
	require.Len(t, next.Items, 4)
	for i := range before.Items {
		assert.Equal(t, before.Items[i], next.Items[i], "prior item %d must keep position and content", i)
	}
	assert.Equal(t, "p2 0", next.Items[2].Title)
	assert.Equal(t, []string{"p1 source", "p2 source"}, next.Sources)
	assert.Equal(t, "p2 roast", next.Commentary)
	assert.Equal(t, "p2 prompt", next.PromptTemplate)
	assert.Equal(t, "p2 model", next.RecommendedModel)

	assert.Len(t, doc.Items, 2, "input document must not change")
	assert.Equal(t, []string{"p1 source"}, doc.Sources)
}

func TestAttachDetail(t *testing.T) {
	doc := Create("query", broadPage("p1", 3), time.Now())
	target := doc.Items[1].ID

	next, ok := AttachDetail(doc, target, details())
	require.True(t, ok)
	assert.Equal(t, doc.Version+1, next.Version)
	assert.True(t, next.Items[1].HasDetails())
	assert.False(t, next.Items[0].HasDetails())
	assert.False(t, next.Items[2].HasDetails())
	assert.False(t, doc.Items[1].HasDetails(), "input document must not change")
}

func TestAttachDetailNeverOverwrites(t *testing.T) {
	doc := Create("query", broadPage("p1", 1), time.Now())
	id := doc.Items[0].ID
	doc, ok := AttachDetail(doc, id, details())
	require.True(t, ok)

	replacement := &model.ItemDetails{Analysis: "other", Steps: []string{"x"}, Risks: "y"}
	again, ok := AttachDetail(doc, id, replacement)
	assert.False(t, ok)
	assert.Equal(t, doc, again)
	assert.Equal(t, "analysis", again.Items[0].Details.Analysis)
}

func TestAttachDetailUnknownItemIsNoop(t *testing.T) {
	doc := Create("query", broadPage("p1", 2), time.Now())
	stale := Create("older", broadPage("old", 1), time.Now())

	next, ok := AttachDetail(doc, stale.Items[0].ID, details())
	assert.False(t, ok)
	assert.Equal(t, doc, next)
}

func TestAttachDetailRejectsPartialDetails(t *testing.T) {
	doc := Create("query", broadPage("p1", 1), time.Now())
	next, ok := AttachDetail(doc, doc.Items[0].ID, &model.ItemDetails{Analysis: "only analysis"})
	assert.False(t, ok)
	assert.False(t, next.Items[0].HasDetails())
}

func TestAttachDetailCopiesSteps(t *testing.T) {
	doc := Create("query", broadPage("p1", 1), time.Now())
	d := details()
	next, ok := AttachDetail(doc, doc.Items[0].ID, d)
	require.True(t, ok)

	d.Steps[0] = "mutated"
	assert.Equal(t, "one", next.Items[0].Details.Steps[0])
}
