package search

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/scry/internal/config"
)

// Intent is the classified purpose of a query. It selects which oracles
// run; it never weights them.
type Intent string

const (
	IntentLocation   Intent = "location"
	IntentTemporal   Intent = "temporal"
	IntentConceptual Intent = "conceptual"
)

// DefaultClassifierCacheSize is the default LRU size for classifications.
const DefaultClassifierCacheSize = 1000

var (
	// a.b between identifier parts, one of them at least two characters;
	// "3.5", "e.g." and a sentence-final "." do not match
	dottedPattern = regexp.MustCompile(`[A-Za-z_]\w+\.[A-Za-z_]\w*|[A-Za-z_]\w*\.[A-Za-z_]\w+`)
	callPattern   = regexp.MustCompile(`[A-Za-z_]\w*\(`)
	// MAX_LIMIT, ERR_404_QUERY_EMPTY; bare acronyms like API do not match
	screamingSnakePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z0-9]+)+$`)
)

var temporalWords = map[string]bool{
	"recent":  true,
	"changed": true,
	"last":    true,
}

// IntentClassifier maps query text to an Intent with fixed lexical rules.
// Results are cached in an LRU keyed by the whitespace-normalized query.
// Safe for concurrent use.
type IntentClassifier struct {
	cache *lru.Cache[string, Intent]
}

// NewIntentClassifier creates a classifier. size <= 0 uses the default.
func NewIntentClassifier(size int) *IntentClassifier {
	if size <= 0 {
		size = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, Intent](size)
	return &IntentClassifier{cache: cache}
}

// Classify returns the intent of query.
//
// Temporal phrasing wins only when no identifier token is present; any
// identifier or a "where is"/"find" phrase means location; everything else
// is conceptual.
func (c *IntentClassifier) Classify(query string) Intent {
	key := normalizeQuery(query)
	if intent, ok := c.cache.Get(key); ok {
		return intent
	}
	intent := classify(key)
	c.cache.Add(key, intent)
	return intent
}

// Cached reports how many classifications are cached.
func (c *IntentClassifier) Cached() int {
	return c.cache.Len()
}

func classify(query string) Intent {
	tokens := strings.Fields(query)
	ident := slices.ContainsFunc(tokens, isIdentifierToken)

	words := lowerWords(query)
	temporal := slices.ContainsFunc(words, func(w string) bool { return temporalWords[w] })
	if temporal && !ident {
		return IntentTemporal
	}

	if ident || slices.Contains(words, "find") || strings.Contains(strings.Join(words, " "), "where is") {
		return IntentLocation
	}
	return IntentConceptual
}

// isIdentifierToken reports whether a whitespace token looks like code:
// a scope separator, a call parenthesis or an ALL_CAPS constant.
func isIdentifierToken(tok string) bool {
	if strings.Contains(tok, "::") || strings.Contains(tok, "->") {
		return true
	}
	if dottedPattern.MatchString(tok) || callPattern.MatchString(tok) {
		return true
	}
	bare := strings.TrimFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	return screamingSnakePattern.MatchString(bare)
}

// lowerWords splits on anything that is not a letter or digit.
func lowerWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizeQuery trims and collapses whitespace. Case is kept because
// ALL_CAPS detection depends on it.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// IntentForMode applies the mode override: recent forces temporal, orient
// forces conceptual, find and why use the classifier.
func IntentForMode(mode Mode, classified func() Intent) Intent {
	switch mode {
	case ModeRecent:
		return IntentTemporal
	case ModeOrient:
		return IntentConceptual
	default:
		return classified()
	}
}

// Plan returns the oracle names to run for intent, restricted to the
// registered names. Conceptual runs every registered oracle in
// registration order.
func Plan(intent Intent, registered []string) []string {
	var want []string
	switch intent {
	case IntentLocation:
		want = []string{config.SourceLexical, config.SourceSemantic}
	case IntentTemporal:
		want = []string{config.SourceTemporal, config.SourceSemantic, config.SourceLexical}
	default:
		return slices.Clone(registered)
	}

	plan := make([]string, 0, len(want))
	for _, name := range want {
		if slices.Contains(registered, name) {
			plan = append(plan, name)
		}
	}
	return plan
}
