// Package extractpipeline implements CDEME's three LLM-driven stages: the
// per-page extractor, the per-field refiner, and the merge adjudicator.
package extractpipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/hotelbrain/internal/llmclient"
	"github.com/jmylchreest/hotelbrain/internal/schema"
)

// ExtractorMaxTokens is the documented per-call budget for page extraction.
const ExtractorMaxTokens = 6144

// Extractor issues one LLM call per page, turning its markdown into a
// category → string mapping.
type Extractor struct {
	llm *llmclient.Client
}

func NewExtractor(llm *llmclient.Client) *Extractor {
	return &Extractor{llm: llm}
}

// Extract runs the per-page extraction described in §4.6. A parse failure
// never surfaces as an error: it degrades to an empty mapping so a single
// bad page never aborts the hotel.
func (e *Extractor) Extract(ctx context.Context, pageURL, pageMarkdown, hotelName string) map[string]string {
	prompt := buildExtractorPrompt(pageURL, pageMarkdown, hotelName)

	// A truncation error still carries a content prefix worth a tolerant
	// parse attempt; only a nil result (hard failure) short-circuits.
	result, _ := e.llm.Complete(ctx, prompt, llmclient.CallOptions{MaxTokens: ExtractorMaxTokens})
	if result == nil {
		return map[string]string{}
	}

	var parsed map[string]string
	if !ExtractJSONObject(result.Content, &parsed) {
		return map[string]string{}
	}

	out := make(map[string]string, len(parsed))
	for _, cat := range schema.All() {
		if v, ok := parsed[cat.Name]; ok {
			out[cat.Name] = strings.TrimSpace(v)
		}
	}
	return out
}

func buildExtractorPrompt(pageURL, pageMarkdown, hotelName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are extracting structured hotel information for %q from one page of its website.\n", hotelName)
	fmt.Fprintf(&b, "Page URL: %s\n\n", pageURL)
	b.WriteString("Return a single JSON object whose keys are exactly these category names, in this order, with no other keys:\n")
	for _, cat := range schema.All() {
		desc := strings.ReplaceAll(cat.Description, "[hotelName]", hotelName)
		fmt.Fprintf(&b, "- %s: %s", cat.Name, desc)
		if cat.CaptureGuide != "" {
			fmt.Fprintf(&b, " (%s)", cat.CaptureGuide)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Use an empty string for any category not present on this page.\n")
	b.WriteString("- Invent nothing: every value must originate from the markdown below.\n")
	b.WriteString("- Preserve list-shaped content as comma- or semicolon-separated text.\n")
	b.WriteString("- Respond with the JSON object only.\n\n")
	b.WriteString("Page markdown:\n")
	b.WriteString(pageMarkdown)
	return b.String()
}
