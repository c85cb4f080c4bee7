package guardrails

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestIsGreeting(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"hi", true},
		{"Hey there, quick question", true},
		{"  GOOD MORNING everyone", true},
		{"hola, como estas", true},
		{"What are hey editions", false}, // not anchored at start
		{"higher limits for dashboards", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsGreeting(c.text); got != c.want {
			t.Errorf("IsGreeting(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestIsGoodbye(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"ok bye", true},
		{"Goodbye! and thanks", true},
		{"see you later", true},
		{"take care now", true},
		{"goodbyes are hard", false}, // word boundary
		{"How do I bypass validation", false},
	}
	for _, c := range cases {
		if got := IsGoodbye(c.text); got != c.want {
			t.Errorf("IsGoodbye(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestIsLowInfo(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"ok thanks", true},                // 2 content tokens
		{"tell me more", true},             // "tell" and "me" stripped, one content token
		{"tell me more about it please", true},
		{"How do I enable managed checkout for D2C Commerce", false},
		{"", true},
	}
	for _, c := range cases {
		if got := IsLowInfo(c.text, 3); got != c.want {
			t.Errorf("IsLowInfo(%q, 3) = %v, want %v", c.text, got, c.want)
		}
	}
}

type fakeCatalog struct {
	products []string
	err      error
}

func (f *fakeCatalog) TopProducts(ctx context.Context, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.products) {
		return f.products[:limit], nil
	}
	return f.products, nil
}

func TestWelcomeMessageListsProducts(t *testing.T) {
	adv := NewAdvisor(&fakeCatalog{products: []string{"CRM Analytics", "D2C Commerce"}})

	msg := adv.WelcomeMessage(context.Background())
	for _, want := range []string{"CRM Analytics", "D2C Commerce", "Try asking"} {
		if !strings.Contains(msg, want) {
			t.Errorf("welcome message missing %q:\n%s", want, msg)
		}
	}
}

func TestWelcomeMessageDegradesOnCatalogError(t *testing.T) {
	adv := NewAdvisor(&fakeCatalog{err: errors.New("db down")})

	msg := adv.WelcomeMessage(context.Background())
	if msg == "" {
		t.Fatal("expected a welcome message even when the catalog fails")
	}
	if strings.Contains(msg, "Popular product areas") {
		t.Errorf("product section should be omitted on catalog failure:\n%s", msg)
	}
}

func TestClarifyMessageEchoesUserText(t *testing.T) {
	adv := NewAdvisor(&fakeCatalog{products: []string{"Sales Cloud"}})

	msg := adv.ClarifyMessage(context.Background(), "  more please  ")
	if !strings.Contains(msg, "more please") {
		t.Errorf("clarify message should echo the user text:\n%s", msg)
	}
	if !strings.Contains(msg, "Sales Cloud") {
		t.Errorf("clarify message should list product areas:\n%s", msg)
	}
}
