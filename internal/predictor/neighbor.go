package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"selfheal/internal/embedding"
	"selfheal/internal/logging"
)

// ArtifactVersion is the current model artifact format.
const ArtifactVersion = 1

// DefaultMinSimilarity is used when neither config nor artifact set one.
const DefaultMinSimilarity = 0.9

// Artifact is the serialized neighbour model.
type Artifact struct {
	Version       int             `json:"version"`
	Codec         string          `json:"codec"`
	Width         int             `json:"width"`
	MinSimilarity float64         `json:"min_similarity"`
	TrainedAt     time.Time       `json:"trained_at"`
	Entries       []ArtifactEntry `json:"entries"`
}

// ArtifactEntry maps one original locator to its learned replacement.
// Weight counts how many corpus records supported the pairing.
type ArtifactEntry struct {
	Original string `json:"original"`
	Healed   string `json:"healed"`
	Weight   int    `json:"weight"`
}

// LoadArtifact reads a model artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported model artifact version %d (want %d)", a.Version, ArtifactVersion)
	}
	return &a, nil
}

// SaveArtifact writes the artifact atomically (temp file + rename).
func SaveArtifact(path string, a *Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model artifact: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace model artifact: %w", err)
	}
	return nil
}

// NeighborModel predicts by nearest-neighbour lookup: the healed vector of
// the most similar known original wins, provided it clears minSimilarity.
// Similarity is normalized edit distance over the encoded locators.
// Its weights are read-only after construction.
type NeighborModel struct {
	name          string
	inputs        [][]float32
	outputs       [][]float32
	minSimilarity float64
}

// NewNeighborModel embeds the artifact entries with codec.
func NewNeighborModel(name string, a *Artifact, codec embedding.Codec, minSimilarity float64) (*NeighborModel, error) {
	if a.Codec != "" && a.Codec != codec.Name() {
		return nil, fmt.Errorf("artifact codec %q does not match configured codec %q", a.Codec, codec.Name())
	}
	if a.Width != 0 && a.Width != codec.Width() {
		return nil, fmt.Errorf("artifact width %d does not match codec width %d", a.Width, codec.Width())
	}
	if minSimilarity <= 0 {
		minSimilarity = a.MinSimilarity
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	m := &NeighborModel{
		name:          name,
		inputs:        make([][]float32, 0, len(a.Entries)),
		outputs:       make([][]float32, 0, len(a.Entries)),
		minSimilarity: minSimilarity,
	}
	for _, e := range a.Entries {
		in := make([]float32, codec.Width())
		out := make([]float32, codec.Width())
		if err := codec.Encode(e.Original, in); err != nil {
			return nil, fmt.Errorf("artifact entry %q: %w", e.Original, err)
		}
		if err := codec.Encode(e.Healed, out); err != nil {
			return nil, fmt.Errorf("artifact entry %q: %w", e.Healed, err)
		}
		m.inputs = append(m.inputs, in)
		m.outputs = append(m.outputs, out)
	}
	return m, nil
}

func loadNeighborModel(cfg Config, codec embedding.Codec) (Model, error) {
	a, err := LoadArtifact(cfg.ModelPath)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryPredictor).Warn("No model artifact at %s; predictions disabled until the model is trained", cfg.ModelPath)
			a = &Artifact{Version: ArtifactVersion, Codec: codec.Name(), Width: codec.Width()}
		} else {
			return nil, err
		}
	}
	logging.Predictor("AI model loaded successfully from: %s (%d entries)", cfg.ModelPath, len(a.Entries))
	return NewNeighborModel("neighbor:"+filepath.Base(cfg.ModelPath), a, codec, cfg.MinSimilarity)
}

func (m *NeighborModel) Name() string { return m.name }

// Size returns the number of learned pairings.
func (m *NeighborModel) Size() int { return len(m.inputs) }

func (m *NeighborModel) Infer(ctx context.Context, in, out *Tensor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := out.Data()
	clear(dst)

	best, ok := embedding.NearestBy(in.Data(), m.inputs, embedding.EditSimilarity)
	if !ok || best.Similarity < m.minSimilarity {
		logging.PredictorDebug("No neighbour above %.2f (best=%.4f)", m.minSimilarity, best.Similarity)
		return nil
	}
	copy(dst, m.outputs[best.Index])
	return nil
}

func (m *NeighborModel) Close() error { return nil }
