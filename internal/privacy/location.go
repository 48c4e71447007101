package privacy

import (
	"encoding/json"
	"math"
	"time"

	"github.com/roamlog/roamlog/models"
)

const (
	// maxLocationTTL caps location cache retention regardless of precision.
	maxLocationTTL = 24 * time.Hour

	// preciseTTL applies to fixes more accurate than accuracyThreshold.
	preciseTTL = 1 * time.Hour

	// accuracyThreshold in meters separates high-precision from coarse
	// fixes. Below it the fix pins the user closely, so it is kept shorter.
	accuracyThreshold = 50.0
)

// CacheTTL returns the retention window for a location payload: shorter for
// higher-precision fixes, capped at 24 hours regardless of precision.
func CacheTTL(fix models.LocationFix) time.Duration {
	if fix.Accuracy > 0 && fix.Accuracy < accuracyThreshold {
		return preciseTTL
	}
	return maxLocationTTL
}

// ApproximateLocation rounds coordinates per level. The level is an explicit
// setting, never inferred:
//
//	full        — unchanged
//	approximate — 3 decimal places (~100 m)
//	minimal     — 2 decimal places (~1 km)
//
// Accuracy and timestamp are preserved; only coordinates are coarsened.
func ApproximateLocation(fix models.LocationFix, level models.PrivacyLevel) models.LocationFix {
	switch level {
	case models.PrivacyApproximate:
		fix.Latitude = roundTo(fix.Latitude, 3)
		fix.Longitude = roundTo(fix.Longitude, 3)
	case models.PrivacyMinimal:
		fix.Latitude = roundTo(fix.Latitude, 2)
		fix.Longitude = roundTo(fix.Longitude, 2)
	}
	return fix
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

// CoarsenLocationBody rewrites the latitude and longitude fields of a JSON
// location payload to the precision of level, leaving every other field
// intact. Returns ok=false when level keeps full precision or the body is
// not a JSON object carrying numeric coordinates.
func CoarsenLocationBody(body []byte, level models.PrivacyLevel) ([]byte, bool) {
	if level != models.PrivacyApproximate && level != models.PrivacyMinimal {
		return body, false
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return body, false
	}
	lat, latOK := payload["latitude"].(float64)
	lon, lonOK := payload["longitude"].(float64)
	if !latOK || !lonOK {
		return body, false
	}

	fix := ApproximateLocation(models.LocationFix{Latitude: lat, Longitude: lon}, level)
	payload["latitude"] = fix.Latitude
	payload["longitude"] = fix.Longitude

	out, err := json.Marshal(payload)
	if err != nil {
		return body, false
	}
	return out, true
}
