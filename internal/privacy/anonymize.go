package privacy

import "github.com/roamlog/roamlog/models"

// Anonymize strips identifying fields from a driving log for analytics
// export while preserving purely statistical fields (durations, distances,
// speeds). The record identifier is kept so exports can be deduplicated.
func Anonymize(log models.DrivingLog) models.DrivingLog {
	return models.DrivingLog{
		ID:          log.ID,
		StartTime:   log.StartTime,
		EndTime:     log.EndTime,
		DistanceKM:  log.DistanceKM,
		DurationMin: log.DurationMin,
		AvgSpeedKMH: log.AvgSpeedKMH,
	}
}
