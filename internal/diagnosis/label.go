package diagnosis

import (
	"math"
	"strings"

	"github.com/agrilens/agrilens/control-plane/pkg/models"
)

// LabelSeparator splits a detected-class label into crop and condition.
const LabelSeparator = "___"

// NormalizeConfidence converts a 0–100 score to [0,1]. Out-of-range values
// are clamped; NaN becomes 0.
func NormalizeConfidence(percent float64) float64 {
	if math.IsNaN(percent) {
		return 0
	}
	v := percent / 100
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ParseLabel splits "Crop___Condition" on the first separator and replaces
// underscores with spaces. Without a separator crop is empty and condition
// is the whole label.
func ParseLabel(label string) (crop, condition string) {
	before, after, found := strings.Cut(label, LabelSeparator)
	if !found {
		return "", display(label)
	}
	return display(before), display(after)
}

// DeriveHealth maps a condition to its health status and subtype.
func DeriveHealth(condition string) (models.HealthStatus, string) {
	if strings.Contains(strings.ToLower(condition), "healthy") {
		return models.HealthHealthy, "Healthy"
	}
	return models.HealthDisease, "Disease"
}

func display(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
