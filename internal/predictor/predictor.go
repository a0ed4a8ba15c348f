// Package predictor owns the locator prediction model: its one-time load,
// inference over call-scoped tensors, and the hand-off of healed pairs to
// the training store.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"selfheal/internal/embedding"
	"selfheal/internal/logging"
	"selfheal/internal/store"

	"golang.org/x/sync/singleflight"
)

// ErrModelNotLoaded is returned by Predict before Load has completed.
// It indicates a sequencing bug in the caller and is not recoverable.
var ErrModelNotLoaded = errors.New("model not loaded")

// Config holds predictor configuration.
type Config struct {
	Backend            string  `yaml:"backend"`              // neighbor, genai
	ModelPath          string  `yaml:"model_path"`           // neighbor artifact
	Codec              string  `yaml:"codec"`                // rune
	Width              int     `yaml:"width"`                // codec vector width
	MinSimilarity      float64 `yaml:"min_similarity"`       // overrides the artifact when > 0
	InferenceTimeoutMs int     `yaml:"inference_timeout_ms"` // 0 = no limit
	GenAIAPIKey        string  `yaml:"genai_api_key"`
	GenAIModel         string  `yaml:"genai_model"`
}

// DefaultConfig returns the local neighbour model under models/.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendNeighbor,
		ModelPath:          filepath.Join("models", "locator_model.json"),
		Codec:              "rune",
		Width:              embedding.DefaultWidth,
		InferenceTimeoutMs: 10000,
		GenAIModel:         "gemini-2.5-flash",
	}
}

// InferenceTimeout returns the per-call inference limit (0 = none).
func (c Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMs) * time.Millisecond
}

type loadedModel struct {
	Model
}

// Predictor is the shared prediction service. Construct one per process and
// inject it wherever locators are resolved; it is safe for concurrent use.
type Predictor struct {
	cfg     Config
	codec   embedding.Codec
	corpus  store.TrainingStore
	loader  Loader
	tensors *TensorPool

	group singleflight.Group
	model atomic.Pointer[loadedModel]
	loads atomic.Int64
}

// Option customizes a Predictor.
type Option func(*Predictor)

// WithLoader replaces DefaultLoader.
func WithLoader(l Loader) Option {
	return func(p *Predictor) { p.loader = l }
}

// WithCodec replaces the codec built from Config.Codec.
func WithCodec(c embedding.Codec) Option {
	return func(p *Predictor) { p.codec = c }
}

// New creates a predictor. corpus may be nil when training data is not kept.
func New(cfg Config, corpus store.TrainingStore, opts ...Option) (*Predictor, error) {
	p := &Predictor{
		cfg:    cfg,
		corpus: corpus,
		loader: DefaultLoader,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.codec == nil {
		codec, err := embedding.NewCodec(cfg.Codec, cfg.Width)
		if err != nil {
			return nil, err
		}
		p.codec = codec
	}
	p.tensors = NewTensorPool(p.codec.Width())
	return p, nil
}

// Load loads the model exactly once. Concurrent callers share a single
// in-flight load; later calls return immediately.
func (p *Predictor) Load(ctx context.Context) error {
	if p.model.Load() != nil {
		return nil
	}

	_, err, shared := p.group.Do("model", func() (interface{}, error) {
		if p.model.Load() != nil {
			return nil, nil
		}
		timer := logging.StartTimer(logging.CategoryPredictor, "Load")
		defer timer.Stop()

		m, err := p.loader(ctx, p.cfg, p.codec)
		if err != nil {
			return nil, err
		}
		p.model.Store(&loadedModel{Model: m})
		p.loads.Add(1)
		logging.Predictor("Model loaded: %s (codec=%s width=%d)", m.Name(), p.codec.Name(), p.codec.Width())
		return nil, nil
	})
	if err != nil {
		logging.Get(logging.CategoryPredictor).Error("Model load failed (shared=%v): %v", shared, err)
		return fmt.Errorf("load model: %w", err)
	}
	return nil
}

// Loaded reports whether Load has completed successfully.
func (p *Predictor) Loaded() bool {
	return p.model.Load() != nil
}

// LoadCount returns how many times a model was actually loaded.
func (p *Predictor) LoadCount() int64 {
	return p.loads.Load()
}

// Tensors exposes the inference buffer pool.
func (p *Predictor) Tensors() *TensorPool {
	return p.tensors
}

// Predict returns the model's replacement for a failed locator. An empty
// result means the model has no prediction.
func (p *Predictor) Predict(ctx context.Context, locator string) (string, error) {
	lm := p.model.Load()
	if lm == nil {
		return "", ErrModelNotLoaded
	}

	in := p.tensors.Acquire()
	defer in.Release()
	out := p.tensors.Acquire()
	defer out.Release()

	if err := p.codec.Encode(locator, in.Data()); err != nil {
		return "", fmt.Errorf("encode %q: %w", locator, err)
	}

	if timeout := p.cfg.InferenceTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryPredictor, "Infer")
	err := lm.Infer(ctx, in, out)
	timer.Stop()
	if err != nil {
		return "", fmt.Errorf("inference for %q: %w", locator, err)
	}

	healed := p.codec.Decode(out.Data())
	logging.PredictorDebug("Predicted %q -> %q", locator, healed)
	return healed, nil
}

// StoreTrainingData appends one healed pair to the training corpus.
// Each call adds a record; duplicates are intended.
func (p *Predictor) StoreTrainingData(ctx context.Context, original, healed string) error {
	if p.corpus == nil {
		return errors.New("no training store configured")
	}
	err := p.corpus.Append(ctx, store.Record{
		OriginalLocator: original,
		HealedLocator:   healed,
	})
	if err != nil {
		return fmt.Errorf("store training data: %w", err)
	}
	logging.Predictor("Training data updated: %s -> %s", original, healed)
	return nil
}

// Close releases the model at process teardown. Predict fails with
// ErrModelNotLoaded afterwards.
func (p *Predictor) Close() error {
	lm := p.model.Swap(nil)
	if lm == nil {
		return nil
	}
	return lm.Close()
}
