package engine

import (
	"sort"

	"github.com/scribehub/transcriber/internal/store/model"
)

// FlattenBoostConfig turns a category keyed boosting configuration into the
// parallel term/score arrays the recognizer expects. Categories are walked in
// sorted order so the output is deterministic. A nil or empty config yields
// empty arrays, which disables boosting without error.
func FlattenBoostConfig(cfg map[string]model.BoostCategory) ([]string, []float64) {
	if len(cfg) == 0 {
		return nil, nil
	}

	categories := make([]string, 0, len(cfg))
	for name := range cfg {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	var terms []string
	var scores []float64
	for _, name := range categories {
		category := cfg[name]
		for _, term := range category.Terms {
			if term == "" {
				continue
			}
			terms = append(terms, term)
			scores = append(scores, category.Boost)
		}
	}

	return terms, scores
}
