package ai

import (
	"fmt"
	"strings"

	filesdomain "github.com/ba-assist/ba-assist-backend/internal/files/domain"
	projdomain "github.com/ba-assist/ba-assist-backend/internal/projects/domain"
)

const truncatedMarker = "\n[...truncated]"

// documentContext concatenates extracted file text, oldest first, cutting
// off at budget characters.
func documentContext(docs []filesdomain.Document, budget int) string {
	if budget <= 0 || len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	remaining := budget
	for _, d := range docs {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		header := fmt.Sprintf("### %s\n", d.Name)
		if len(header) >= remaining {
			b.WriteString(truncatedMarker)
			break
		}
		b.WriteString(header)
		remaining -= len(header)

		if r := []rune(text); len(r) > remaining {
			b.WriteString(string(r[:remaining]))
			b.WriteString(truncatedMarker)
			break
		}
		b.WriteString(text)
		b.WriteString("\n\n")
		remaining -= len([]rune(text)) + 2
	}
	return strings.TrimSpace(b.String())
}

func projectBlock(p *projdomain.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "Project description: %s\n", p.Description)
	}
	return b.String()
}

func roadmapSystemPrompt(artifactCodes []string) string {
	return `You are a senior business analyst planning a BABOK-aligned engagement.
Reply with a single JSON object and nothing else, shaped exactly as:
{"name": string, "phases": [{"name": string, "description": string, "tasks": [{"title": string, "description": string, "artifact_codes": [string]}]}]}
Produce between 3 and 8 phases, each with 2 to 8 concrete tasks.
Only use artifact codes from this list: ` + strings.Join(artifactCodes, ", ") + "."
}

func roadmapUserPrompt(p *projdomain.Project, docs, instructions string) string {
	var b strings.Builder
	b.WriteString(projectBlock(p))
	if instructions != "" {
		fmt.Fprintf(&b, "\nAdditional instructions: %s\n", instructions)
	}
	if docs != "" {
		b.WriteString("\nProject documents:\n")
		b.WriteString(docs)
	}
	return b.String()
}

const summarySystemPrompt = `You are a senior business analyst. Summarise the project for a stakeholder update.
Reply with a single JSON object and nothing else, shaped exactly as:
{"summary": string, "key_points": [string], "risks": [string]}
Keep the summary under 150 words.`

func summaryUserPrompt(p *projdomain.Project, docs string) string {
	var b strings.Builder
	b.WriteString(projectBlock(p))
	if docs != "" {
		b.WriteString("\nProject documents:\n")
		b.WriteString(docs)
	} else {
		b.WriteString("\nNo documents have been processed yet.\n")
	}
	return b.String()
}
