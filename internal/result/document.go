// Package result holds the Result Document operations. Every mutation returns
// a new document value; inputs are never modified.
package result

import (
	"time"

	"github.com/google/uuid"

	"issuecompass/internal/ai"
	"issuecompass/internal/model"
)

// Create builds the first version of a new document from a broad response.
func Create(query string, resp *ai.BroadResponse, now time.Time) model.ResultDocument {
	return model.ResultDocument{
		ID:               uuid.NewString(),
		Version:          1,
		Query:            query,
		CreatedAt:        now,
		Items:            newItems(resp.Suggestions),
		Commentary:       resp.Roast,
		Sources:          append([]string(nil), resp.Sources...),
		PromptTemplate:   resp.PromptSuggestion,
		RecommendedModel: resp.BestModel,
	}
}

// AppendPage appends the page's items after the existing ones, concatenates
// sources and takes commentary, prompt and model from the latest page.
func AppendPage(doc model.ResultDocument, resp *ai.BroadResponse) model.ResultDocument {
	next := clone(doc)
	next.Version++
	next.Items = append(next.Items, newItems(resp.Suggestions)...)
	next.Sources = append(next.Sources, resp.Sources...)
	next.Commentary = resp.Roast
	next.PromptTemplate = resp.PromptSuggestion
	next.RecommendedModel = resp.BestModel
	return next
}

// AttachDetail populates the details of item itemID. The document comes back
// unchanged (same version, ok=false) when the item is unknown, already has
// details, or details are incomplete.
func AttachDetail(doc model.ResultDocument, itemID string, details *model.ItemDetails) (model.ResultDocument, bool) {
	if !details.Complete() {
		return doc, false
	}
	idx := -1
	for i, item := range doc.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 || doc.Items[idx].HasDetails() {
		return doc, false
	}

	next := clone(doc)
	next.Version++
	d := *details
	d.Steps = append([]string(nil), details.Steps...)
	next.Items[idx].Details = &d
	return next, true
}

func newItems(suggestions []ai.Suggestion) []model.SuggestionItem {
	items := make([]model.SuggestionItem, 0, len(suggestions))
	for _, s := range suggestions {
		items = append(items, model.SuggestionItem{
			ID:          uuid.NewString(),
			Title:       s.Title,
			Description: s.Description,
		})
	}
	return items
}

// clone copies the slices so the new version shares no backing arrays with
// the old one. Details pointers are shared; they are never written after
// being attached.
func clone(doc model.ResultDocument) model.ResultDocument {
	next := doc
	next.Items = append(make([]model.SuggestionItem, 0, len(doc.Items)), doc.Items...)
	next.Sources = append(make([]string, 0, len(doc.Sources)), doc.Sources...)
	return next
}
