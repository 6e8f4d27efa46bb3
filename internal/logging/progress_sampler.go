package logging

// ProgressSampler suppresses repetitive progress updates, emitting only when
// the percentage crosses a bucket boundary. The render queue uses it to bound
// how often fractional progress callbacks turn into persisted writes.
type ProgressSampler struct {
	step       float64
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// step-sized boundaries (default 5).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, lastBucket: -1}
}

// ShouldEmit reports whether a progress value should be acted on. Percent is
// clamped to [0,100]; values that stay inside the current bucket are dropped.
// Buckets only move forward, so late out-of-order callbacks never emit.
func (s *ProgressSampler) ShouldEmit(percent float64) bool {
	if s == nil {
		return true
	}
	if percent < 0 {
		return false
	}
	bucket := int(percent / s.step)
	if percent >= 100 {
		bucket = int(100 / s.step)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Reset clears the sampler state for a new job.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
}
