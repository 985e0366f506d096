// Package contentcache provides a generic, capacity-bounded LRU cache with a
// fixed TTL, persisted through an injected key-value store. Two instances run
// per process: one for sign-recognition results, one for avatar animations.
package contentcache

import "time"

// Entry wraps a cached payload with its access bookkeeping.
type Entry[T any] struct {
	Key            string    `json:"key"`
	Payload        T         `json:"payload"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	UsageCount     int       `json:"usageCount"`
}

// SignRecognition is the payload of the gesture-to-signs cache.
type SignRecognition struct {
	RecognizedSigns []string `json:"recognizedSigns"`
	Confidence      float64  `json:"confidence"` // 0..1
}

// AvatarAnimation is the payload of the text-to-animation cache. Exactly one
// of VideoPath or AnimationData is set, depending on the rendering backend.
type AvatarAnimation struct {
	SignSequence  []string `json:"signSequence"` // gloss tokens, in order
	VideoPath     string   `json:"videoPath,omitempty"`
	AnimationData []byte   `json:"animationData,omitempty"`
}
