package pipeline

import (
	"fmt"
	"strings"

	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/internal/llm"
)

const systemPrompt = `You are a helpful assistant specialized in Salesforce Help documentation.
- Base answers ONLY on the provided context passages.
- Keep answers precise and grounded; do not invent edition/limit info.
- If information is missing, say you can't find it in the provided docs.`

// AnswerMode selects the prompt strategy of the composer. It is a closed
// set: ModeDefault for grounded Q&A, ModeOverview for a structured product
// summary.
type AnswerMode interface {
	isAnswerMode()
}

// ModeDefault is grounded Q&A over the passages: answer strictly from
// them, decline when they do not support an answer.
type ModeDefault struct {
	Query string
}

// ModeOverview produces a structured summary of one product; used for
// vague follow-ups whose product context is known.
type ModeOverview struct {
	Product string
}

func (ModeDefault) isAnswerMode()  {}
func (ModeOverview) isAnswerMode() {}

// buildMessages is the single prompt assembly point: it maps a mode to the
// message list and sampling temperature for the completion call.
func buildMessages(mode AnswerMode, passages []*schema.Chunk, summary string) ([]llm.Message, float64, error) {
	var (
		user        string
		temperature float64
	)
	switch m := mode.(type) {
	case ModeDefault:
		user = memoryNote(summary) +
			"# Context passages:\n" + formatPassages(passages) + "\n\n" +
			"# User question:\n" + m.Query + "\n\n" +
			"Answer using ONLY the context. Keep the answer concise but complete, and include concrete steps or editions when stated."
		temperature = 0.1
	case ModeOverview:
		user = memoryNote(summary) +
			"# Product: " + m.Product + "\n" +
			"# Context passages:\n" + formatPassages(passages) + "\n\n" +
			`Create a grounded PRODUCT OVERVIEW for the product above using ONLY the context. ` +
			`Prefer facts that appear multiple times or in summary/intro sections. ` +
			"Use this structured format (omit a section if not supported by the context):\n\n" +
			"## What it is\n- 2-3 sentences.\n\n" +
			"## Supported editions / availability\n- List exact editions, experiences (Lightning, mobile), and key availability notes.\n\n" +
			"## Core capabilities\n- 4-8 bullet points of major features.\n\n" +
			"## Setup highlights / prerequisites\n- 3-6 bullets of important setup steps/prereqs called out in docs.\n\n" +
			"## Typical tasks\n- 3-6 bullets of common tasks users perform here.\n\n" +
			"## Related features\n- Bullets of features frequently paired with this product.\n\n" +
			"## Next questions you can ask\n- 3 concise, actionable follow-ups.\n\n" +
			"Be precise; if editions or constraints are not explicitly stated in the context, say they aren't shown here."
		temperature = 0.2
	default:
		return nil, 0, fmt.Errorf("unknown answer mode %T", mode)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}, temperature, nil
}

// formatPassages renders the numbered context block shared by both prompt
// modes. The numbering matches the order of the source list returned with
// the answer.
func formatPassages(passages []*schema.Chunk) string {
	lines := make([]string, 0, len(passages))
	for i, c := range passages {
		title := c.DocTitle
		if title == "" {
			title = c.DocID
		}
		header := fmt.Sprintf("[%d] %s", i+1, title)
		if c.SectionTitle != "" {
			header += " / " + c.SectionTitle
		}
		if c.PageStart > 0 && c.PageEnd > 0 {
			header += fmt.Sprintf(" (p.%d-%d)", c.PageStart, c.PageEnd)
		}
		lines = append(lines, header+"\n"+c.Content)
	}
	return strings.Join(lines, "\n\n")
}

func memoryNote(summary string) string {
	if summary == "" {
		return ""
	}
	return "# Conversation note:\n" + summary + "\n\n"
}
