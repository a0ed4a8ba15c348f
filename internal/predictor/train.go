package predictor

import (
	"time"

	"selfheal/internal/embedding"
	"selfheal/internal/logging"
	"selfheal/internal/store"
)

// Train builds a neighbour artifact from the training corpus. Repeated
// pairings add weight; for each original the heaviest healed locator wins,
// with ties going to the pairing seen most recently. Records the codec
// cannot represent are skipped.
func Train(records []store.Record, codec embedding.Codec, minSimilarity float64) *Artifact {
	timer := logging.StartTimer(logging.CategoryPredictor, "Train")
	defer timer.Stop()

	type candidate struct {
		weight   int
		lastSeen int
	}
	var order []string
	byOriginal := make(map[string]map[string]*candidate)

	buf := make([]float32, codec.Width())
	skipped := 0
	for i, rec := range records {
		if rec.OriginalLocator == "" || rec.HealedLocator == "" {
			skipped++
			continue
		}
		if codec.Encode(rec.OriginalLocator, buf) != nil || codec.Encode(rec.HealedLocator, buf) != nil {
			skipped++
			continue
		}
		healed, ok := byOriginal[rec.OriginalLocator]
		if !ok {
			healed = make(map[string]*candidate)
			byOriginal[rec.OriginalLocator] = healed
			order = append(order, rec.OriginalLocator)
		}
		c, ok := healed[rec.HealedLocator]
		if !ok {
			c = &candidate{}
			healed[rec.HealedLocator] = c
		}
		c.weight++
		c.lastSeen = i
	}
	if skipped > 0 {
		logging.Get(logging.CategoryPredictor).Warn("Train: skipped %d records the codec cannot represent", skipped)
	}

	a := &Artifact{
		Version:       ArtifactVersion,
		Codec:         codec.Name(),
		Width:         codec.Width(),
		MinSimilarity: minSimilarity,
		TrainedAt:     time.Now().UTC(),
		Entries:       make([]ArtifactEntry, 0, len(order)),
	}
	for _, original := range order {
		var best string
		var bestC *candidate
		for healed, c := range byOriginal[original] {
			if bestC == nil || c.weight > bestC.weight || (c.weight == bestC.weight && c.lastSeen > bestC.lastSeen) {
				best, bestC = healed, c
			}
		}
		a.Entries = append(a.Entries, ArtifactEntry{Original: original, Healed: best, Weight: bestC.weight})
	}

	logging.Predictor("Trained model from %d records: %d pairings", len(records), len(a.Entries))
	return a
}
