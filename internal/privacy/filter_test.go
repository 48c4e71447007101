package privacy

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/crypto"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsents is an in-memory ConsentRepository.
type fakeConsents struct {
	granted map[models.DataCategory]bool
}

func (f *fakeConsents) Set(_ context.Context, category models.DataCategory, granted bool) error {
	if f.granted == nil {
		f.granted = make(map[models.DataCategory]bool)
	}
	f.granted[category] = granted
	return nil
}

func (f *fakeConsents) Get(_ context.Context, category models.DataCategory) (bool, error) {
	return f.granted[category], nil
}

func newTestFilter(t *testing.T) *Filter {
	t.Helper()

	kc := crypto.NewKeyChain()
	salt, err := kc.GenerateSalt()
	require.NoError(t, err)
	key := kc.DeriveKey("filter-tests", salt)

	cfg := config.Privacy{Level: models.PrivacyApproximate}
	return NewFilter(cfg, kc, key, &fakeConsents{}, logger.Nop())
}

func TestShouldCache_SensitiveFieldsBlocked(t *testing.T) {
	f := newTestFilter(t)

	tests := []struct {
		name    string
		payload map[string]any
		want    bool
	}{
		{name: "plain trip", payload: map[string]any{"id": "1", "distance_km": 12.5}, want: true},
		{name: "password", payload: map[string]any{"password": "hunter2"}, want: false},
		{name: "upper-case token", payload: map[string]any{"AUTH_TOKEN": "abc"}, want: false},
		{name: "ssn", payload: map[string]any{"ssn": "000-00-0000"}, want: false},
		{name: "credit card nested", payload: map[string]any{"billing": map[string]any{"creditCard": "4111"}}, want: false},
		{name: "nested in array", payload: map[string]any{"items": []any{map[string]any{"apiKey": "k"}}}, want: false},
		{name: "identifying but not sensitive", payload: map[string]any{"driver_name": "Kim"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldCache(tt.payload))
		})
	}
}

func TestNeedsEncryption(t *testing.T) {
	f := newTestFilter(t)

	assert.True(t, f.NeedsEncryption(map[string]any{"driver_name": "Kim"}))
	assert.True(t, f.NeedsEncryption(map[string]any{"contact": map[string]any{"email": "kim@roamlog.test"}}))
	assert.False(t, f.NeedsEncryption(map[string]any{"distance_km": 12.5, "duration_min": 30.0}))
}

func TestEncryptDecryptPayload_RoundTrip(t *testing.T) {
	f := newTestFilter(t)
	payload := map[string]any{"driver_name": "Kim", "end_location": "B"}

	blob, err := f.EncryptPayload(payload)
	require.NoError(t, err)
	assert.NotContains(t, blob, "Kim")

	var out map[string]any
	require.NoError(t, f.DecryptPayload(blob, &out))
	assert.Equal(t, "Kim", out["driver_name"])
}

func TestEncryptPayload_MissingKeyFailsLoudly(t *testing.T) {
	kc := crypto.NewKeyChain()
	f := NewFilter(config.Privacy{Level: models.PrivacyFull}, kc, nil, &fakeConsents{}, logger.Nop())

	_, err := f.EncryptPayload(map[string]any{"driver_name": "Kim"})
	assert.Error(t, err)

	var out map[string]any
	assert.Error(t, f.DecryptPayload("anything", &out))
}

func TestConsentGranted_DefaultDeny(t *testing.T) {
	f := newTestFilter(t)
	ctx := context.Background()

	granted, err := f.ConsentGranted(ctx, models.CategoryLocation)
	require.NoError(t, err)
	assert.False(t, granted, "absence of a recorded flag must read as false")

	consents := &fakeConsents{}
	require.NoError(t, consents.Set(ctx, models.CategoryLocation, true))
	f2 := NewFilter(config.Privacy{Level: models.PrivacyFull}, crypto.NewKeyChain(), nil, consents, logger.Nop())

	granted, err = f2.ConsentGranted(ctx, models.CategoryLocation)
	require.NoError(t, err)
	assert.True(t, granted)
}

func decimalPlaces(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func TestApproximateLocation_PrecisionMonotonicity(t *testing.T) {
	fix := models.LocationFix{Latitude: 52.5216661, Longitude: 13.4049541, Accuracy: 10}

	full := ApproximateLocation(fix, models.PrivacyFull)
	approx := ApproximateLocation(fix, models.PrivacyApproximate)
	minimal := ApproximateLocation(fix, models.PrivacyMinimal)

	assert.Equal(t, fix.Latitude, full.Latitude, "full precision must be unchanged")
	assert.Equal(t, 52.522, approx.Latitude, "approximate rounds to ~100m")
	assert.Equal(t, 13.405, approx.Longitude)
	assert.Equal(t, 52.52, minimal.Latitude, "minimal rounds to ~1km")

	// Decimal places strictly decrease full → approximate → minimal.
	assert.Greater(t, decimalPlaces(full.Latitude), decimalPlaces(approx.Latitude))
	assert.Greater(t, decimalPlaces(approx.Latitude), decimalPlaces(minimal.Latitude))
}

func TestCacheTTL(t *testing.T) {
	precise := models.LocationFix{Accuracy: 5}
	coarse := models.LocationFix{Accuracy: 500}
	unknown := models.LocationFix{}

	assert.Equal(t, time.Hour, CacheTTL(precise), "high-precision fixes get shorter retention")
	assert.Equal(t, 24*time.Hour, CacheTTL(coarse))
	assert.Equal(t, 24*time.Hour, CacheTTL(unknown))
	assert.LessOrEqual(t, CacheTTL(precise), 24*time.Hour, "24h cap regardless of precision")
}

func TestCoarsenLocationBody(t *testing.T) {
	body := []byte(`{"latitude":52.5216661,"longitude":13.4132928,"accuracy":12,"source":"gps"}`)

	out, ok := CoarsenLocationBody(body, models.PrivacyApproximate)
	require.True(t, ok)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(out, &payload))
	assert.Equal(t, 52.522, payload["latitude"])
	assert.Equal(t, 13.413, payload["longitude"])
	assert.Equal(t, "gps", payload["source"], "non-coordinate fields survive untouched")

	_, ok = CoarsenLocationBody(body, models.PrivacyFull)
	assert.False(t, ok, "full precision leaves the body alone")

	_, ok = CoarsenLocationBody([]byte(`[1,2]`), models.PrivacyMinimal)
	assert.False(t, ok, "bodies without coordinates are not rewritten")
}

func TestAnonymize_StripsIdentifyingKeepsStats(t *testing.T) {
	log := models.DrivingLog{
		ID:            "trip-1",
		DriverName:    "Kim",
		StartLocation: "Home, Example Street 1",
		EndLocation:   "Office",
		DistanceKM:    12.5,
		DurationMin:   30,
		AvgSpeedKMH:   25,
	}

	anon := Anonymize(log)

	assert.Empty(t, anon.DriverName)
	assert.Empty(t, anon.StartLocation)
	assert.Empty(t, anon.EndLocation)
	assert.Empty(t, anon.Notes)
	assert.Equal(t, 12.5, anon.DistanceKM)
	assert.Equal(t, 30.0, anon.DurationMin)
	assert.Equal(t, 25.0, anon.AvgSpeedKMH)
}
