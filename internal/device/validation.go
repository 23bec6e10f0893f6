package device

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// maxSlugLength bounds slugs used as MQTT topic segments.
const maxSlugLength = 50

// ValidateID checks that a device id is not blank.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: device id cannot be empty", ErrInvalidArgument)
	}
	return nil
}

func validateBrightness(v int) error {
	if v < MinBrightness || v > MaxBrightness {
		return invalidf("brightness %d outside [%d, %d]", v, MinBrightness, MaxBrightness)
	}
	return nil
}

func validateTemperature(v float64) error {
	if math.IsNaN(v) || v < MinTemperature || v > MaxTemperature {
		return invalidf("temperature %v outside [%v, %v]", v, MinTemperature, MaxTemperature)
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Slug creates a topic- and URL-safe form of a device id:
// "Living Room Light" becomes "living-room-light".
func Slug(id string) string {
	slug := strings.ToLower(id)
	slug = strings.NewReplacer(" ", "-", "_", "-").Replace(slug)

	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	slug = b.String()

	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// TopicSlug returns the MQTT topic segment for a device id. Ids without
// any slug-safe character fall back to a hex encoding of the whole id.
// Two ids may still share a TopicSlug; System.Discover rejects the second.
func TopicSlug(id string) string {
	if slug := Slug(id); slug != "" {
		return slug
	}
	return "id-" + hex.EncodeToString([]byte(id))
}

// uniform returns a float drawn uniformly from [lo, hi).
func uniform(rng Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
