package model

import "time"

type ItemDetails struct {
	Analysis string   `json:"analysis"`
	Steps    []string `json:"steps"`
	Risks    string   `json:"risks"`
}

// Complete reports whether all three parts are populated. Partial details are
// never stored on an item.
func (d *ItemDetails) Complete() bool {
	return d != nil && d.Analysis != "" && len(d.Steps) > 0 && d.Risks != ""
}

type SuggestionItem struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Details     *ItemDetails `json:"details,omitempty"`
}

func (i SuggestionItem) HasDetails() bool {
	return i.Details != nil
}

// ResultDocument is one analysis session. ID is stable across versions;
// Version grows by one with every produced version.
type ResultDocument struct {
	ID               string           `json:"id"`
	Version          int              `json:"version"`
	Query            string           `json:"query"`
	Language         string           `json:"language,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	Items            []SuggestionItem `json:"items"`
	Commentary       string           `json:"commentary"`
	Sources          []string         `json:"sources"`
	PromptTemplate   string           `json:"prompt_template,omitempty"`
	RecommendedModel string           `json:"recommended_model,omitempty"`
}

func (d *ResultDocument) Item(id string) (SuggestionItem, bool) {
	for _, item := range d.Items {
		if item.ID == id {
			return item, true
		}
	}
	return SuggestionItem{}, false
}

func (d *ResultDocument) Titles() []string {
	titles := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		titles = append(titles, item.Title)
	}
	return titles
}

// PendingItems returns items still lacking details, in display order.
func (d *ResultDocument) PendingItems() []SuggestionItem {
	var pending []SuggestionItem
	for _, item := range d.Items {
		if !item.HasDetails() {
			pending = append(pending, item)
		}
	}
	return pending
}

func (d *ResultDocument) DetailedCount() int {
	count := 0
	for _, item := range d.Items {
		if item.HasDetails() {
			count++
		}
	}
	return count
}
