package usecase

import (
	"fmt"
	"strings"

	"answer-engine/internal/domain"
)

// maxSourceRunes bounds how much of each result's text goes into the prompt.
const maxSourceRunes = 2000

func buildPromptMessages(query string, selected []domain.Result) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSystemPrompt()},
		{Role: domain.RoleUser, Content: buildUserPrompt(query, selected)},
	}
}

func buildSystemPrompt() string {
	return strings.Join([]string{
		"You are an answer engine. Answer the user's query using only the numbered sources provided.",
		"",
		"Formatting Rules:",
		formattingRules(),
	}, "\n")
}

func formattingRules() string {
	return strings.Join([]string{
		"1) Organize the answer into sections, each starting with a line of the form \"## Section title\".",
		"2) Separate paragraphs with a blank line.",
		"3) Use **double asterisks** to emphasize key terms.",
		"4) Introduce list items inline with the • character.",
		"5) Cite sources with bracketed numbers such as [1] or [1, 3] right after the supported statement.",
		"6) Only cite numbers that appear in the source list.",
	}, "\n")
}

func buildUserPrompt(query string, selected []domain.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nSources:", strings.TrimSpace(query))
	for i, r := range selected {
		fmt.Fprintf(&b, "\n[%d] %s: %s", i+1, r.DisplayTitle(), truncateRunes(normalizePromptInput(r.Text), maxSourceRunes))
	}
	return b.String()
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
