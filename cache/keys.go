package cache

import (
	"fmt"

	"github.com/prismquery/planner/hashutil"
	"github.com/prismquery/planner/model"
)

// modelHash computes H(defaults ∥ calendars) — the global-config content
// hash every other cache key is namespaced under.
func modelHash(m *model.Model) (hashutil.Hash, error) {
	h, err := hashutil.OfParts(m.Defaults, m.Calendars)
	if err != nil {
		return "", fmt.Errorf("cache: hash model: %w", err)
	}
	return h, nil
}

// entityHash computes table_hash(T) = H(T ∥ measures(T)) for a fact
// entity, or dimension_hash(D) = H(D) for everything else. EntityDef
// already embeds its own Measures, so hashing e alone is sufficient for
// the dimension case; the fact case additionally folds in e.Measures to
// match spec.md's literal "T ∥ measures(T)" composition.
func entityHash(e model.EntityDef) (hashutil.Hash, error) {
	if e.Kind == model.EntityFact {
		h, err := hashutil.OfParts(e, e.Measures)
		if err != nil {
			return "", fmt.Errorf("cache: hash entity %q: %w", e.Name, err)
		}
		return h, nil
	}
	h, err := hashutil.Of(e)
	if err != nil {
		return "", fmt.Errorf("cache: hash entity %q: %w", e.Name, err)
	}
	return h, nil
}

func inferenceKey(mHash hashutil.Hash) string {
	return fmt.Sprintf("inference:%s", mHash)
}

func completeGraphKey(mHash hashutil.Hash, inferenceVersion string) string {
	return fmt.Sprintf("graph:%s:%s:complete", mHash, inferenceVersion)
}

func entityNodesKey(mHash hashutil.Hash, inferenceVersion string, kind model.EntityKind, eHash hashutil.Hash) string {
	class := "dimension"
	if kind == model.EntityFact {
		class = "table"
	}
	return fmt.Sprintf("graph:%s:%s:%s:%s:nodes", mHash, inferenceVersion, class, eHash)
}

func edgesKey(mHash hashutil.Hash, inferenceVersion string) string {
	return fmt.Sprintf("graph:%s:%s:edges", mHash, inferenceVersion)
}
