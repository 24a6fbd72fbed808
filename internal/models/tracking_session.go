package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fundilink/internal/utils"
)

type TrackingSessionStatus string

const (
	TrackingStatusActive    TrackingSessionStatus = "active"
	TrackingStatusPaused    TrackingSessionStatus = "paused"
	TrackingStatusCompleted TrackingSessionStatus = "completed"
	TrackingStatusCancelled TrackingSessionStatus = "cancelled"
	TrackingStatusExpired   TrackingSessionStatus = "expired"
)

type TrackingSession struct {
	ID                primitive.ObjectID    `json:"id" bson:"_id,omitempty"`
	BookingID         primitive.ObjectID    `json:"booking_id" bson:"booking_id" validate:"required"`
	FundiID           primitive.ObjectID    `json:"fundi_id" bson:"fundi_id" validate:"required"`
	ClientID          primitive.ObjectID    `json:"client_id" bson:"client_id" validate:"required"`
	Status            TrackingSessionStatus `json:"status" bson:"status" default:"active"`
	Settings          TrackingSettings      `json:"settings" bson:"settings"`
	Geofence          GeofenceTarget        `json:"geofence" bson:"geofence"`
	Samples           []LocationSample      `json:"samples" bson:"samples"`
	Metrics           TrackingMetrics       `json:"metrics" bson:"metrics"`
	ArrivalDetected   bool                  `json:"arrival_detected" bson:"arrival_detected"`
	ArrivalTime       *time.Time            `json:"arrival_time" bson:"arrival_time"`
	DepartureDetected bool                  `json:"departure_detected" bson:"departure_detected"`
	DepartureTime     *time.Time            `json:"departure_time" bson:"departure_time"`
	Notifications     TrackingNotifications `json:"notifications" bson:"notifications"`
	StartedAt         time.Time             `json:"started_at" bson:"started_at"`
	EndedAt           *time.Time            `json:"ended_at" bson:"ended_at"`
	CreatedAt         time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at" bson:"updated_at"`
}

type TrackingSettings struct {
	SampleInterval       time.Duration `json:"sample_interval" bson:"sample_interval"`
	MaxDuration          time.Duration `json:"max_duration" bson:"max_duration"`
	AutoEndOnArrival     bool          `json:"auto_end_on_arrival" bson:"auto_end_on_arrival"`
	SharePreciseLocation bool          `json:"share_precise_location" bson:"share_precise_location"`
}

type GeofenceTarget struct {
	Latitude     float64 `json:"latitude" bson:"latitude"`
	Longitude    float64 `json:"longitude" bson:"longitude"`
	RadiusMeters float64 `json:"radius_meters" bson:"radius_meters"`
	Address      string  `json:"address,omitempty" bson:"address,omitempty"`
}

type TrackingMetrics struct {
	TotalDistanceMeters   float64 `json:"total_distance_meters" bson:"total_distance_meters"`
	AverageSpeedMPS       float64 `json:"average_speed_mps" bson:"average_speed_mps"`
	AverageAccuracyMeters float64 `json:"average_accuracy_meters" bson:"average_accuracy_meters"`
	SampleCount           int     `json:"sample_count" bson:"sample_count"`
	AccuracySamples       int     `json:"-" bson:"accuracy_samples"`
}

type TrackingNotifications struct {
	ArrivalSent bool `json:"arrival_sent" bson:"arrival_sent"`
}

// Samples are ordered by receipt; RecordedAt carries the device clock and is
// stored untouched (no skew correction).
type LocationSample struct {
	Latitude       float64   `json:"latitude" bson:"latitude" validate:"required"`
	Longitude      float64   `json:"longitude" bson:"longitude" validate:"required"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty" bson:"accuracy_meters,omitempty"`
	Heading        float64   `json:"heading,omitempty" bson:"heading,omitempty"`
	SpeedMPS       float64   `json:"speed_mps,omitempty" bson:"speed_mps,omitempty"`
	BatteryLevel   int       `json:"battery_level,omitempty" bson:"battery_level,omitempty"`
	NetworkType    string    `json:"network_type,omitempty" bson:"network_type,omitempty"`
	IsForeground   bool      `json:"is_foreground" bson:"is_foreground"`
	RecordedAt     time.Time `json:"recorded_at" bson:"recorded_at"`
	ReceivedAt     time.Time `json:"received_at" bson:"received_at"`
}

func (s *TrackingSession) IsTerminal() bool {
	switch s.Status {
	case TrackingStatusCompleted, TrackingStatusCancelled, TrackingStatusExpired:
		return true
	}
	return false
}

func (s *TrackingSession) CurrentSample() *LocationSample {
	if len(s.Samples) == 0 {
		return nil
	}
	return &s.Samples[len(s.Samples)-1]
}

// ExpireIfOverdue forces an active session past its max duration into the
// expired state. Returns true when the transition happened.
func (s *TrackingSession) ExpireIfOverdue(now time.Time) bool {
	if s.Status != TrackingStatusActive {
		return false
	}
	if now.Sub(s.StartedAt) <= s.Settings.MaxDuration {
		return false
	}

	s.Status = TrackingStatusExpired
	s.EndedAt = &now
	s.UpdatedAt = now
	return true
}

// ApplySample appends a sample to an active session and recomputes the
// derived state: incremental distance, average speed and accuracy, and the
// geofence arrival/departure flags. It returns whether this sample crossed
// the geofence boundary for the first time. The caller must reject samples
// for non-active sessions beforehand; the expiry check runs first as a
// backstop, so an overdue session expires and drops the sample instead of
// completing on a late arrival.
func (s *TrackingSession) ApplySample(sample LocationSample, now time.Time) (arrivalJustDetected bool) {
	if s.ExpireIfOverdue(now) {
		return false
	}

	prev := s.CurrentSample()

	sample.ReceivedAt = now
	s.Samples = append(s.Samples, sample)
	s.Metrics.SampleCount = len(s.Samples)

	if prev != nil {
		s.Metrics.TotalDistanceMeters += utils.CalculateDistanceMeters(
			prev.Latitude, prev.Longitude, sample.Latitude, sample.Longitude)
	}

	if elapsed := now.Sub(s.StartedAt).Seconds(); elapsed > 0 {
		s.Metrics.AverageSpeedMPS = s.Metrics.TotalDistanceMeters / elapsed
	}

	if sample.AccuracyMeters > 0 {
		n := float64(s.Metrics.AccuracySamples)
		s.Metrics.AverageAccuracyMeters = (s.Metrics.AverageAccuracyMeters*n + sample.AccuracyMeters) / (n + 1)
		s.Metrics.AccuracySamples++
	}

	distance := utils.CalculateDistanceMeters(
		sample.Latitude, sample.Longitude, s.Geofence.Latitude, s.Geofence.Longitude)

	if !s.ArrivalDetected && distance <= s.Geofence.RadiusMeters {
		s.ArrivalDetected = true
		s.ArrivalTime = &now
		arrivalJustDetected = true

		if s.Settings.AutoEndOnArrival {
			s.Status = TrackingStatusCompleted
			s.EndedAt = &now
		}
	} else if s.ArrivalDetected && !s.DepartureDetected && distance > s.Geofence.RadiusMeters {
		// Fires at most once per session.
		s.DepartureDetected = true
		s.DepartureTime = &now
	}

	s.UpdatedAt = now

	return arrivalJustDetected
}

func (s *TrackingSession) Stop(now time.Time) {
	s.Status = TrackingStatusCompleted
	s.EndedAt = &now
	s.UpdatedAt = now
}

func (s *TrackingSession) Cancel(now time.Time) {
	s.Status = TrackingStatusCancelled
	s.EndedAt = &now
	s.UpdatedAt = now
}

// DistanceToTargetMeters measures from the latest sample to the geofence
// center; ok is false when no sample has arrived yet.
func (s *TrackingSession) DistanceToTargetMeters() (float64, bool) {
	current := s.CurrentSample()
	if current == nil {
		return 0, false
	}
	return utils.CalculateDistanceMeters(
		current.Latitude, current.Longitude, s.Geofence.Latitude, s.Geofence.Longitude), true
}

// ETASeconds estimates arrival time from the remaining distance and average
// speed. ok is false when the estimate is undefined (no samples or no
// movement yet) so callers never read a misleading zero.
func (s *TrackingSession) ETASeconds() (float64, bool) {
	distance, ok := s.DistanceToTargetMeters()
	if !ok {
		return 0, false
	}
	return utils.EstimateETASeconds(distance, s.Metrics.AverageSpeedMPS)
}
