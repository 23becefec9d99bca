// Package classify assigns spending categories to normalized
// transaction descriptions using an external text-completion model.
// The model is treated as a black box: it is shown the category
// vocabulary and both forms of the description, and the category is
// recovered from its free-form answer by substring matching.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hsbakhtar202/qbk/internal/vocab"
)

// FallbackCategory is assigned when the oracle call fails or its
// response names no known category. Classification degrades to this
// sentinel instead of aborting the run.
const FallbackCategory = "Miscellaneous"

// DefaultBusinessType frames the classification when no business type
// is configured.
const DefaultBusinessType = "Convenience Store"

// Classifier wraps an Oracle with the prompt construction and
// response-matching rules for transaction categorization.
type Classifier struct {
	oracle       Oracle
	businessType string
	log          zerolog.Logger
}

// New creates a Classifier. The oracle is passed in explicitly so the
// pipeline and tests control which backend is used; there is no shared
// process-wide client.
func New(oracle Oracle, businessType string, log zerolog.Logger) *Classifier {
	if businessType == "" {
		businessType = DefaultBusinessType
	}
	return &Classifier{oracle: oracle, businessType: businessType, log: log}
}

// Classify assigns a category to one normalized description. It sends
// a single oracle request and scans the response for the first
// vocabulary category name that appears as a case-insensitive
// substring, in vocabulary order. Oracle failures and unmatched
// responses both yield FallbackCategory; errors are logged, never
// returned, so one bad call cannot abort the run.
//
// First-match-wins is order-sensitive: when one category name is a
// substring of another ("Food" vs "Food & Beverage"), whichever comes
// first in the vocabulary wins regardless of which the model meant.
func (c *Classifier) Classify(ctx context.Context, original, normalized string, v *vocab.Vocabulary) string {
	system := c.systemPrompt(original, normalized, v)
	user := fmt.Sprintf(
		"Considering the business is categorized under NAICS as %s, which category does this transaction belong to?",
		c.businessType,
	)

	text, err := c.oracle.Complete(ctx, system, user)
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("normalized_description", normalized).
			Str("fallback", FallbackCategory).
			Msg("oracle call failed")
		return FallbackCategory
	}

	lower := strings.ToLower(text)
	for _, name := range v.Names() {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}

	c.log.Warn().
		Str("normalized_description", normalized).
		Str("fallback", FallbackCategory).
		Msg("no category name found in oracle response")
	return FallbackCategory
}

// systemPrompt frames the request: the business context, the full
// ordered category list, and both forms of the description.
func (c *Classifier) systemPrompt(original, normalized string, v *vocab.Vocabulary) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Thinking like a human accountant, given that the business type is %s, categorize the following transaction.\n\n",
		c.businessType,
	)
	fmt.Fprintf(&b,
		"Business Type: %s. Based on the business type and the transaction descriptions below, categorize the transaction into one of the following categories: %s. Consider the context of the transaction.\n\n",
		c.businessType,
		strings.Join(v.Names(), ", "),
	)
	fmt.Fprintf(&b, "Original Description: '%s'\n", original)
	fmt.Fprintf(&b, "Normalized Description: '%s'\n\n", normalized)
	b.WriteString("What is the most appropriate category for this transaction?\n")
	return b.String()
}
