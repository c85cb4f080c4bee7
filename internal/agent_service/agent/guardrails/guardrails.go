package guardrails

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Small stopword set for low-info detection. Deliberately tiny: it only has
// to strip the filler around vague follow-ups like "tell me more about it".
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"please": {}, "pls": {}, "about": {}, "on": {}, "of": {}, "for": {},
	"to": {}, "me": {}, "something": {}, "some": {}, "tell": {},
	"say": {}, "explain": {}, "help": {}, "info": {}, "information": {},
}

var (
	greetingRe = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|yo|hola|namaste|good\s*(morning|afternoon|evening))\b`)
	goodbyeRe  = regexp.MustCompile(`(?i)\b(bye|goodbye|see\s*you|see\s*ya|take\s*care)\b`)
	tokenRe    = regexp.MustCompile(`[A-Za-z0-9]+`)
)

// IsGreeting reports whether the text opens with a greeting.
// The pattern is anchored at the start: "hey there" matches,
// "what are hey editions" does not.
func IsGreeting(text string) bool {
	return greetingRe.MatchString(text)
}

// IsGoodbye reports whether the text contains a farewell phrase anywhere.
func IsGoodbye(text string) bool {
	return goodbyeRe.MatchString(text)
}

// IsLowInfo reports whether the text carries fewer than minContentTokens
// content words once stopwords are removed. This is the signal for vague
// follow-ups ("tell me more", "ok thanks") that cannot stand alone as a
// query.
func IsLowInfo(text string, minContentTokens int) bool {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	content := 0
	for _, t := range tokens {
		if _, stop := stopwords[t]; !stop {
			content++
		}
	}
	return content < minContentTokens
}

// exampleQueries are shown in welcome and clarification messages.
var exampleQueries = []string{
	"How do I create a dashboard in CRM Analytics?",
	"What are supported editions for B2B Commerce?",
	"Enable managed checkout for D2C Commerce",
	"Set up DevOps Center in Salesforce",
	"What is Omnichannel Inventory?",
	"How to configure Sales Cloud Einstein features?",
}

// ProductCatalog is the read-only slice of the candidate store the advisor
// needs: the most common product tags by chunk count.
type ProductCatalog interface {
	TopProducts(ctx context.Context, limit int) ([]string, error)
}

// Advisor builds the human-readable guidance messages (welcome and
// clarification) from the product catalog.
type Advisor struct {
	catalog ProductCatalog
}

// NewAdvisor creates an Advisor bound to a product catalog.
func NewAdvisor(catalog ProductCatalog) *Advisor {
	return &Advisor{catalog: catalog}
}

// WelcomeMessage greets a new conversation with the popular product areas
// and a few example queries. Catalog failures degrade to a message without
// the product list rather than failing the turn.
func (a *Advisor) WelcomeMessage(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("Hi! I can answer questions from your **Salesforce Help** corpus.\n\n")

	if prods, err := a.catalog.TopProducts(ctx, 12); err == nil && len(prods) > 0 {
		sb.WriteString("**Popular product areas I know:**\n")
		for _, p := range prods {
			sb.WriteString(fmt.Sprintf("- %s\n", p))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("**Try asking:**\n")
	for _, q := range exampleQueries[:4] {
		sb.WriteString(fmt.Sprintf("• %s\n", q))
	}
	return sb.String()
}

// ClarifyMessage asks the user to narrow down a message that retrieval
// could not act on, echoing their text and suggesting product areas.
func (a *Advisor) ClarifyMessage(ctx context.Context, userText string) string {
	var sb strings.Builder
	sb.WriteString("I can help with Salesforce Help content, but I need a bit more detail.\n")
	sb.WriteString(fmt.Sprintf("Your message was: _“%s”_.\n\n", strings.TrimSpace(userText)))

	if prods, err := a.catalog.TopProducts(ctx, 10); err == nil && len(prods) > 0 {
		sb.WriteString("Please specify a product/feature, like one of these product areas:\n")
		sb.WriteString(strings.Join(prods, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("For example:\n")
	for _, q := range exampleQueries[:3] {
		sb.WriteString(fmt.Sprintf("• %s\n", q))
	}
	return sb.String()
}
