package lifecycle

import "time"

// NetworkQuality is an advisory categorization of the current connection.
// It never gates functionality; callers may use it to pick lighter
// strategies on slow links.
type NetworkQuality string

const (
	QualityFast NetworkQuality = "fast"
	QualitySlow NetworkQuality = "slow"
)

// NetworkHints carries whatever connection measurements are available.
// Zero fields mean the measurement is unknown.
type NetworkHints struct {
	RTT          time.Duration
	DownlinkMbps float64
	SaveData     bool
}

const (
	slowRTTThreshold      = 500 * time.Millisecond
	slowDownlinkThreshold = 1.0 // Mbps
)

// ClassifyNetwork maps hints to a quality tier. Without usable hints the
// connection is assumed fast.
func ClassifyNetwork(h NetworkHints) NetworkQuality {
	switch {
	case h.SaveData:
		return QualitySlow
	case h.RTT > slowRTTThreshold:
		return QualitySlow
	case h.DownlinkMbps > 0 && h.DownlinkMbps < slowDownlinkThreshold:
		return QualitySlow
	default:
		return QualityFast
	}
}
