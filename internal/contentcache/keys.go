package contentcache

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Cache keys are FNV-64a digests of a canonical serialization: deterministic,
// cheap, and short enough to eyeball in logs when auditing collisions.

// KeyForPose derives a key from a hand-pose landmark array.
func KeyForPose(pose []float64) string {
	var sb strings.Builder
	sb.WriteString("pose:")
	for i, v := range pose {
		if i > 0 {
			sb.WriteByte(',')
		}
		// Fixed precision so float noise below recognition resolution
		// maps to the same key.
		sb.WriteString(strconv.FormatFloat(v, 'f', 4, 64))
	}
	return hashKey(sb.String())
}

// KeyForText derives a key from normalized text plus the scenario, since the
// same phrase can animate differently per scenario.
func KeyForText(text, scenario string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return hashKey("text:" + scenario + ":" + normalized)
}

func hashKey(canonical string) string {
	h := fnv.New64a()
	h.Write([]byte(canonical))
	return fmt.Sprintf("%016x", h.Sum64())
}
