package ml

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PredictorSource hands out the predictor for the currently loaded bundle.
type PredictorSource interface {
	Current() *Predictor
}

// CachedPredictor memoises predictions by scaled feature vector. Keys include
// the bundle identity, so entries from a replaced bundle never match.
type CachedPredictor struct {
	source PredictorSource
	cache  *lru.Cache[string, *Prediction]
}

func NewCachedPredictor(source PredictorSource, size int) (*CachedPredictor, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, *Prediction](size)
	if err != nil {
		return nil, err
	}
	return &CachedPredictor{source: source, cache: cache}, nil
}

// Predict returns the prediction and whether it was served from the cache.
func (c *CachedPredictor) Predict(input map[string]any) (*Prediction, bool, error) {
	predictor := c.source.Current()
	scaled, err := predictor.Transform(input)
	if err != nil {
		return nil, false, err
	}
	key := cacheKey(predictor.Bundle(), scaled)
	if hit, ok := c.cache.Get(key); ok {
		return hit.clone(), true, nil
	}
	prediction, err := predictor.Classify(scaled)
	if err != nil {
		return nil, false, err
	}
	c.cache.Add(key, prediction.clone())
	return prediction, false, nil
}

func (c *CachedPredictor) Len() int { return c.cache.Len() }

func (c *CachedPredictor) Purge() { c.cache.Purge() }

func cacheKey(b *Bundle, scaled []float64) string {
	var sb strings.Builder
	sb.WriteString(b.Fingerprint)
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatInt(b.CreatedAt.UnixNano(), 36))
	sb.WriteByte('/')
	var buf [8]byte
	for _, v := range scaled {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		sb.Write(buf[:])
	}
	return sb.String()
}
