package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestSession(started time.Time) *TrackingSession {
	return &TrackingSession{
		ID:        primitive.NewObjectID(),
		BookingID: primitive.NewObjectID(),
		FundiID:   primitive.NewObjectID(),
		ClientID:  primitive.NewObjectID(),
		Status:    TrackingStatusActive,
		Settings: TrackingSettings{
			SampleInterval:       15 * time.Second,
			MaxDuration:          time.Hour,
			AutoEndOnArrival:     true,
			SharePreciseLocation: true,
		},
		Geofence: GeofenceTarget{
			Latitude:     0,
			Longitude:    0,
			RadiusMeters: 100,
		},
		StartedAt: started,
	}
}

// 0.001 degrees of latitude is roughly 111 meters.
const (
	latAt150m = 0.00135
	latAt50m  = 0.00045
)

func TestApplySampleArrivalAutoEnd(t *testing.T) {
	started := time.Now()
	session := newTestSession(started)

	// First sample outside the geofence: no arrival.
	arrived := session.ApplySample(LocationSample{Latitude: latAt150m, Longitude: 0}, started.Add(time.Minute))
	if arrived {
		t.Fatal("arrival detected 150m out")
	}
	if session.ArrivalDetected {
		t.Error("ArrivalDetected set 150m out")
	}
	if session.Status != TrackingStatusActive {
		t.Errorf("status = %v, want active", session.Status)
	}

	// Second sample inside: arrival, auto-end.
	arrived = session.ApplySample(LocationSample{Latitude: latAt50m, Longitude: 0}, started.Add(2*time.Minute))
	if !arrived {
		t.Fatal("arrival not detected 50m out")
	}
	if !session.ArrivalDetected {
		t.Error("ArrivalDetected not set")
	}
	if session.ArrivalTime == nil {
		t.Error("ArrivalTime not set")
	}
	if session.Status != TrackingStatusCompleted {
		t.Errorf("status = %v, want completed", session.Status)
	}
	if session.EndedAt == nil {
		t.Error("EndedAt not set on auto-end")
	}
}

func TestApplySampleNoAutoEnd(t *testing.T) {
	started := time.Now()
	session := newTestSession(started)
	session.Settings.AutoEndOnArrival = false

	arrived := session.ApplySample(LocationSample{Latitude: latAt50m, Longitude: 0}, started.Add(time.Minute))
	if !arrived {
		t.Fatal("arrival not detected")
	}
	if session.Status != TrackingStatusActive {
		t.Errorf("status = %v, want active when auto-end is off", session.Status)
	}
}

func TestArrivalIsMonotonic(t *testing.T) {
	started := time.Now()
	session := newTestSession(started)
	session.Settings.AutoEndOnArrival = false

	session.ApplySample(LocationSample{Latitude: latAt50m, Longitude: 0}, started.Add(time.Minute))
	if !session.ArrivalDetected {
		t.Fatal("arrival not detected")
	}

	// Leaving the geofence never clears the arrival flag; it records a
	// departure instead, exactly once.
	arrived := session.ApplySample(LocationSample{Latitude: latAt150m, Longitude: 0}, started.Add(2*time.Minute))
	if arrived {
		t.Error("second arrival reported on departure")
	}
	if !session.ArrivalDetected {
		t.Error("ArrivalDetected reverted")
	}
	if !session.DepartureDetected {
		t.Fatal("departure not detected")
	}
	firstDeparture := *session.DepartureTime

	// Bouncing back out again must not move the departure time.
	session.ApplySample(LocationSample{Latitude: latAt50m, Longitude: 0}, started.Add(3*time.Minute))
	session.ApplySample(LocationSample{Latitude: latAt150m, Longitude: 0}, started.Add(4*time.Minute))
	if !session.DepartureTime.Equal(firstDeparture) {
		t.Error("departure time changed on second exit")
	}
}

func TestApplySampleMetrics(t *testing.T) {
	started := time.Now()
	session := newTestSession(started)
	session.Settings.AutoEndOnArrival = false

	session.ApplySample(LocationSample{Latitude: 0.01, Longitude: 0, AccuracyMeters: 10}, started.Add(time.Minute))
	if session.Metrics.SampleCount != 1 {
		t.Fatalf("SampleCount = %d, want 1", session.Metrics.SampleCount)
	}
	if session.Metrics.TotalDistanceMeters != 0 {
		t.Errorf("distance after first sample = %v, want 0", session.Metrics.TotalDistanceMeters)
	}

	session.ApplySample(LocationSample{Latitude: 0.02, Longitude: 0, AccuracyMeters: 20}, started.Add(2*time.Minute))
	if session.Metrics.SampleCount != 2 {
		t.Fatalf("SampleCount = %d, want 2", session.Metrics.SampleCount)
	}
	// ~1.11km between the two samples.
	if session.Metrics.TotalDistanceMeters < 1000 || session.Metrics.TotalDistanceMeters > 1300 {
		t.Errorf("TotalDistanceMeters = %v, want ~1112", session.Metrics.TotalDistanceMeters)
	}
	wantSpeed := session.Metrics.TotalDistanceMeters / (2 * 60)
	if diff := session.Metrics.AverageSpeedMPS - wantSpeed; diff > 0.001 || diff < -0.001 {
		t.Errorf("AverageSpeedMPS = %v, want %v", session.Metrics.AverageSpeedMPS, wantSpeed)
	}
	if session.Metrics.AverageAccuracyMeters != 15 {
		t.Errorf("AverageAccuracyMeters = %v, want 15", session.Metrics.AverageAccuracyMeters)
	}
}

func TestExpireIfOverdue(t *testing.T) {
	started := time.Now().Add(-2 * time.Hour)
	session := newTestSession(started) // MaxDuration one hour

	if !session.ExpireIfOverdue(time.Now()) {
		t.Fatal("overdue session not expired")
	}
	if session.Status != TrackingStatusExpired {
		t.Errorf("status = %v, want expired", session.Status)
	}
	if session.EndedAt == nil {
		t.Error("EndedAt not set on expiry")
	}

	// Terminal states never transition again.
	if session.ExpireIfOverdue(time.Now()) {
		t.Error("expired session expired twice")
	}
}

func TestExpiryWinsOverArrival(t *testing.T) {
	started := time.Now().Add(-2 * time.Hour)
	session := newTestSession(started)

	// The sample lands inside the geofence, but the session is overdue:
	// the expiry check runs on every mutation and decides the terminal
	// state, dropping the sample.
	arrived := session.ApplySample(LocationSample{Latitude: latAt50m, Longitude: 0}, time.Now())
	if arrived {
		t.Error("arrival reported on an overdue session")
	}
	if session.Status != TrackingStatusExpired {
		t.Errorf("status = %v, want expired over completed", session.Status)
	}
	if len(session.Samples) != 0 {
		t.Errorf("overdue session accepted %d samples", len(session.Samples))
	}
}

func TestIsTerminal(t *testing.T) {
	tt := []struct {
		status TrackingSessionStatus
		want   bool
	}{
		{TrackingStatusActive, false},
		{TrackingStatusPaused, false},
		{TrackingStatusCompleted, true},
		{TrackingStatusCancelled, true},
		{TrackingStatusExpired, true},
	}

	for _, tc := range tt {
		session := &TrackingSession{Status: tc.status}
		if got := session.IsTerminal(); got != tc.want {
			t.Errorf("IsTerminal(%v) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestETASeconds(t *testing.T) {
	started := time.Now()
	session := newTestSession(started)
	session.Settings.AutoEndOnArrival = false

	// No samples: undefined.
	if _, ok := session.ETASeconds(); ok {
		t.Error("ETA defined with no samples")
	}

	// One sample, no movement yet: average speed is zero, still undefined.
	session.ApplySample(LocationSample{Latitude: 0.02, Longitude: 0}, started.Add(time.Minute))
	if _, ok := session.ETASeconds(); ok {
		t.Error("ETA defined with zero average speed")
	}

	// Movement: ETA becomes distance over average speed.
	session.ApplySample(LocationSample{Latitude: 0.01, Longitude: 0}, started.Add(2*time.Minute))
	eta, ok := session.ETASeconds()
	if !ok {
		t.Fatal("ETA undefined after movement")
	}
	distance, _ := session.DistanceToTargetMeters()
	want := distance / session.Metrics.AverageSpeedMPS
	if diff := eta - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("ETASeconds = %v, want %v", eta, want)
	}
}

func TestStopAndCancel(t *testing.T) {
	now := time.Now()

	session := newTestSession(now)
	session.Stop(now)
	if session.Status != TrackingStatusCompleted || session.EndedAt == nil {
		t.Errorf("Stop: status = %v, endedAt = %v", session.Status, session.EndedAt)
	}

	session = newTestSession(now)
	session.Cancel(now)
	if session.Status != TrackingStatusCancelled || session.EndedAt == nil {
		t.Errorf("Cancel: status = %v, endedAt = %v", session.Status, session.EndedAt)
	}
}
