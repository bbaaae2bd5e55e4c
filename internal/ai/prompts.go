package ai

import (
	"fmt"
	"strings"
)

const persona = `You are a blunt, sharp-witted advisor for everyday life problems (legal, construction, workplace, money, family).
You look at the problem from every angle, you are critical and a little sarcastic, but always useful.
Always answer with a single JSON object and nothing else.`

const broadSchema = `{
  "suggestions": [{"title": string, "description": string}],
  "roast": string,
  "sources": [string],
  "promptSuggestion": string,
  "bestModel": string
}`

const detailSchema = `{
  "analysis": string,
  "steps": [string],
  "risks": string
}`

func languageInstruction(language string) string {
	return fmt.Sprintf("Write every human-readable value in the language with code %q.", language)
}

func broadSystemPrompt(language string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nTask: broad analysis. List the related sub-issues the user will have to deal with, most important first.\n")
	b.WriteString("\"roast\" is a short critical and humorous commentary on the situation.\n")
	b.WriteString("\"sources\" are laws, regulations, institutions or references worth checking.\n")
	b.WriteString("\"promptSuggestion\" is a reusable prompt the user can paste into another assistant.\n")
	b.WriteString("\"bestModel\" names the kind of model best suited to dig deeper.\n")
	b.WriteString(languageInstruction(language))
	b.WriteString("\nSchema:\n")
	b.WriteString(broadSchema)
	return b.String()
}

func broadUserPrompt(query string, priorTitles []string) string {
	var b strings.Builder
	b.WriteString("Issue:\n")
	b.WriteString(strings.TrimSpace(query))
	if len(priorTitles) > 0 {
		b.WriteString("\n\nThese sub-issues were already listed, do not repeat them, find new ones:\n")
		for _, title := range priorTitles {
			b.WriteString("- ")
			b.WriteString(title)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func detailSystemPrompt(language string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nTask: detail. Give a deep analysis of one sub-issue, the concrete steps to take in order, and the risks of ignoring it.\n")
	b.WriteString(languageInstruction(language))
	b.WriteString("\nSchema:\n")
	b.WriteString(detailSchema)
	return b.String()
}

func detailUserPrompt(itemTitle, parentQuery string) string {
	return fmt.Sprintf("Original issue:\n%s\n\nSub-issue to analyse:\n%s", strings.TrimSpace(parentQuery), strings.TrimSpace(itemTitle))
}
