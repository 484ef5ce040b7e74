package dialogue

import (
	"strings"

	"github.com/ArthurBabkin/ai-sales/catalog"
)

// Matcher decides which intent, if any, a classification response
// names. Pluggable so a stricter strategy can replace the substring
// heuristic without touching the engine.
type Matcher interface {
	Match(classification string, intents []catalog.Intent) (catalog.Intent, bool)
}

// SubstringMatcher picks the first intent (catalog order) whose name
// appears, case-insensitively, anywhere in the classification text.
// Deliberately loose: the model phrases its verdict freely.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(classification string, intents []catalog.Intent) (catalog.Intent, bool) {
	lowered := strings.ToLower(classification)
	for _, intent := range intents {
		name := strings.ToLower(strings.TrimSpace(intent.Name))
		if name == "" {
			continue
		}
		if strings.Contains(lowered, name) {
			return intent, true
		}
	}
	return catalog.Intent{}, false
}
