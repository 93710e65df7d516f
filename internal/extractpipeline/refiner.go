package extractpipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/hotelbrain/internal/llmclient"
	"github.com/jmylchreest/hotelbrain/internal/schema"
)

// RefinerMaxTokens is the documented per-call budget for field refinement.
const RefinerMaxTokens = 10240

// Snippet is one extractor contribution to a category's bucket.
type Snippet struct {
	PageURL string
	Text    string
}

// Refiner consolidates every page's contribution to one category into a
// single value.
type Refiner struct {
	llm *llmclient.Client
}

func NewRefiner(llm *llmclient.Client) *Refiner {
	return &Refiner{llm: llm}
}

// Refine implements §4.7. An empty bucket short-circuits to "" without an
// LLM call; a call failure degrades to "" as well, which the Merge
// Adjudicator's blank-input rule then treats as no-op.
func (r *Refiner) Refine(ctx context.Context, category, hotelName, homepageURL string, snippets []Snippet) string {
	if len(snippets) == 0 {
		return ""
	}

	cat, ok := schema.Lookup(category)
	if !ok {
		cat = schema.Category{Name: category}
	}

	prompt := buildRefinerPrompt(cat, hotelName, homepageURL, snippets)
	result, err := r.llm.Complete(ctx, prompt, llmclient.CallOptions{MaxTokens: RefinerMaxTokens})
	if result == nil {
		_ = err
		return ""
	}
	return strings.TrimSpace(result.Content)
}

func buildRefinerPrompt(cat schema.Category, hotelName, homepageURL string, snippets []Snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consolidate the following snippets into a single field value for the %q field about %q.\n", cat.Name, hotelName)

	if cat.Name != schema.OtherCategory {
		desc := strings.ReplaceAll(cat.Description, "[hotelName]", hotelName)
		fmt.Fprintf(&b, "Field description: %s\n", desc)
	}
	if cat.MergeGuide != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", cat.MergeGuide)
	}
	if cat.Name != schema.OtherCategory {
		fmt.Fprintf(&b, "Weight snippets from URLs topically related to this field most heavily, weight the homepage (%s) second, and break any remaining ties in the order the snippets are listed below.\n", homepageURL)
	}
	b.WriteString("Remove duplicate information while preserving every distinct fact. Preserve any URLs that already appear within the snippet text itself. Do not emit the numbered source markers below in your output. Respond with the consolidated field text only — no JSON, no preamble.\n\n")

	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] source: %s\n%s\n\n", i+1, s.PageURL, s.Text)
	}
	return b.String()
}
