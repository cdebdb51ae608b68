package geospatial

import (
	"fmt"
	"math"
)

// FormatDistance renders a kilometer distance for display: whole meters below
// one kilometer, otherwise kilometers with one decimal.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int64(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}
