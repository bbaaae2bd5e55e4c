// Package export turns a ResultDocument into a printable, paginated report.
package export

import (
	"errors"
	"fmt"
	"strings"

	"issuecompass/internal/model"
)

var ErrInvalidPageBudget = errors.New("lines per page must be positive")

type Page struct {
	Number int      `json:"number"`
	Lines  []string `json:"lines"`
}

// Render lays the document out as report lines. doc is only read.
func Render(doc model.ResultDocument) []string {
	var lines []string
	lines = append(lines, "Issue: "+doc.Query)
	if !doc.CreatedAt.IsZero() {
		lines = append(lines, "Created: "+doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	lines = append(lines, "")

	if doc.Commentary != "" {
		lines = append(lines, "Commentary", doc.Commentary, "")
	}

	for i, item := range doc.Items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, item.Title))
		if item.Description != "" {
			lines = append(lines, "   "+item.Description)
		}
		if d := item.Details; d != nil {
			lines = append(lines, "   Analysis: "+d.Analysis)
			for j, step := range d.Steps {
				lines = append(lines, fmt.Sprintf("   Step %d: %s", j+1, step))
			}
			lines = append(lines, "   Risks: "+d.Risks)
		}
		lines = append(lines, "")
	}

	if len(doc.Sources) > 0 {
		lines = append(lines, "Sources")
		for _, src := range doc.Sources {
			lines = append(lines, "- "+src)
		}
		lines = append(lines, "")
	}
	if doc.PromptTemplate != "" {
		lines = append(lines, "Prompt template: "+doc.PromptTemplate)
	}
	if doc.RecommendedModel != "" {
		lines = append(lines, "Recommended model: "+doc.RecommendedModel)
	}

	return splitMultiline(lines)
}

// Paginate splits lines into pages of at most linesPerPage lines. Every line
// lands on exactly one page, in order, and lines is not modified.
func Paginate(lines []string, linesPerPage int) ([]Page, error) {
	if linesPerPage <= 0 {
		return nil, ErrInvalidPageBudget
	}
	var pages []Page
	for start := 0; start < len(lines); start += linesPerPage {
		end := min(start+linesPerPage, len(lines))
		page := make([]string, end-start)
		copy(page, lines[start:end])
		pages = append(pages, Page{Number: len(pages) + 1, Lines: page})
	}
	return pages, nil
}

// Report renders doc and paginates it in one step.
func Report(doc model.ResultDocument, linesPerPage int) ([]Page, error) {
	return Paginate(Render(doc), linesPerPage)
}

func splitMultiline(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Split(line, "\n")...)
	}
	return out
}
