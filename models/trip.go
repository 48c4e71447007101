package models

import "time"

// PrivacyLevel selects how much location precision leaves the device.
// The level is always an explicit setting, never inferred.
type PrivacyLevel string

const (
	PrivacyFull        PrivacyLevel = "full"
	PrivacyApproximate PrivacyLevel = "approximate"
	PrivacyMinimal     PrivacyLevel = "minimal"
)

// DataCategory groups stored records for consent gating and retention.
type DataCategory string

const (
	CategoryLocation DataCategory = "location"
	CategoryUsage    DataCategory = "usage"
	CategoryDevice   DataCategory = "device"
	CategoryLogs     DataCategory = "logs"
	CategorySettings DataCategory = "settings"
)

// DrivingLog is the trip record this engine queues and syncs. The UI owns
// its lifecycle; the engine only moves it around.
type DrivingLog struct {
	ID            string    `json:"id"`
	DriverName    string    `json:"driver_name,omitempty"`
	StartLocation string    `json:"start_location,omitempty"`
	EndLocation   string    `json:"end_location,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DistanceKM    float64   `json:"distance_km"`
	DurationMin   float64   `json:"duration_min"`
	AvgSpeedKMH   float64   `json:"avg_speed_kmh"`
	Notes         string    `json:"notes,omitempty"`
}

// LocationFix is a single GPS sample. Accuracy is in meters; smaller is
// more precise.
type LocationFix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recorded_at"`
}
