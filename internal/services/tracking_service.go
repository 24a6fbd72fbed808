package services

import (
	"context"
	"errors"
	"time"

	"fundilink/internal/config"
	"fundilink/internal/models"
	"fundilink/internal/repositories/interfaces"
	"fundilink/internal/utils"
	"fundilink/pkg/logger"

	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StartSessionInput struct {
	BookingID primitive.ObjectID
	FundiID   primitive.ObjectID
	ClientID  primitive.ObjectID
	Settings  *models.TrackingSettings
	Geofence  models.GeofenceTarget
}

type AddSampleResult struct {
	Session             *models.TrackingSession
	ArrivalJustDetected bool
}

// TrackingSessionView is the read-time projection of a session: derived
// distance and ETA, with coordinates coarsened and the street address
// stripped when the session does not share precise location with its viewer.
type TrackingSessionView struct {
	Session                *models.TrackingSession `json:"session"`
	DistanceToTargetMeters *float64                `json:"distance_to_target_meters,omitempty"`
	ETASeconds             *float64                `json:"eta_seconds,omitempty"`
	Masked                 bool                    `json:"masked"`
}

type TrackingService interface {
	StartSession(ctx context.Context, input *StartSessionInput) (*models.TrackingSession, error)
	AddSample(ctx context.Context, sessionID, fundiID primitive.ObjectID, sample models.LocationSample) (*AddSampleResult, error)
	StopSession(ctx context.Context, sessionID, fundiID primitive.ObjectID) (*models.TrackingSession, error)
	CancelSession(ctx context.Context, sessionID primitive.ObjectID, requester *Principal) (*models.TrackingSession, error)
	GetSession(ctx context.Context, sessionID primitive.ObjectID, requester *Principal) (*TrackingSessionView, error)
	GetActiveSessionByBooking(ctx context.Context, bookingID primitive.ObjectID, requester *Principal) (*TrackingSessionView, error)

	// ExpireOverdueSessions is the periodic sweep that catches sessions whose
	// max duration elapsed with no further samples arriving.
	ExpireOverdueSessions(ctx context.Context) (int, error)
}

type trackingService struct {
	trackingRepo interfaces.TrackingRepository
	config       *config.TrackingConfig
	logger       *logger.Logger
}

func NewTrackingService(trackingRepo interfaces.TrackingRepository, cfg *config.TrackingConfig, log *logger.Logger) TrackingService {
	return &trackingService{
		trackingRepo: trackingRepo,
		config:       cfg,
		logger:       log,
	}
}

func (s *trackingService) StartSession(ctx context.Context, input *StartSessionInput) (*models.TrackingSession, error) {
	if !utils.IsValidCoordinates(input.Geofence.Latitude, input.Geofence.Longitude) {
		return nil, errs.InvalidArgumentError("invalid geofence coordinates")
	}

	if _, err := s.trackingRepo.GetActiveSessionByBooking(ctx, input.BookingID); err == nil {
		return nil, errs.ConflictError("an active tracking session already exists for this booking")
	} else if !isNotFound(err) {
		return nil, err
	}

	settings := s.defaultSettings()
	if input.Settings != nil {
		settings = *input.Settings
		if settings.SampleInterval <= 0 {
			settings.SampleInterval = s.config.DefaultSampleInterval
		}
		if settings.MaxDuration <= 0 {
			settings.MaxDuration = s.config.DefaultMaxDuration
		}
	}

	geofence := input.Geofence
	if geofence.RadiusMeters <= 0 {
		geofence.RadiusMeters = s.config.DefaultRadiusMeters
	}

	now := time.Now()
	session := &models.TrackingSession{
		BookingID: input.BookingID,
		FundiID:   input.FundiID,
		ClientID:  input.ClientID,
		Status:    models.TrackingStatusActive,
		Settings:  settings,
		Geofence:  geofence,
		StartedAt: now,
	}

	// The unique partial index on (booking_id, status=active) backstops the
	// duplicate check above under concurrent starts.
	if err := s.trackingRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithSessionID(session.ID).WithField("booking_id", input.BookingID.Hex()).Info("Tracking session started")

	return session, nil
}

func (s *trackingService) defaultSettings() models.TrackingSettings {
	return models.TrackingSettings{
		SampleInterval:       s.config.DefaultSampleInterval,
		MaxDuration:          s.config.DefaultMaxDuration,
		AutoEndOnArrival:     true,
		SharePreciseLocation: true,
	}
}

func (s *trackingService) AddSample(ctx context.Context, sessionID, fundiID primitive.ObjectID, sample models.LocationSample) (*AddSampleResult, error) {
	if !utils.IsValidCoordinates(sample.Latitude, sample.Longitude) {
		return nil, errs.InvalidArgumentError("invalid sample coordinates")
	}

	session, err := s.trackingRepo.GetActiveSessionForSubject(ctx, sessionID, fundiID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// An overdue session expires instead of accepting the sample.
	if session.ExpireIfOverdue(now) {
		if err := s.trackingRepo.UpdateActiveSession(ctx, session); err != nil {
			return nil, err
		}
		return nil, errs.NotFoundError("no active tracking session for fundi")
	}

	arrivalJustDetected := session.ApplySample(sample, now)
	if arrivalJustDetected && !session.Notifications.ArrivalSent {
		// Persisted with the transition so the arrival event fires once even
		// across restarts.
		session.Notifications.ArrivalSent = true
	} else {
		arrivalJustDetected = false
	}

	if err := s.trackingRepo.UpdateActiveSession(ctx, session); err != nil {
		return nil, err
	}

	return &AddSampleResult{
		Session:             session,
		ArrivalJustDetected: arrivalJustDetected,
	}, nil
}

func (s *trackingService) StopSession(ctx context.Context, sessionID, fundiID primitive.ObjectID) (*models.TrackingSession, error) {
	session, err := s.trackingRepo.GetActiveSessionForSubject(ctx, sessionID, fundiID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if session.ExpireIfOverdue(now) {
		if err := s.trackingRepo.UpdateActiveSession(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}

	session.Stop(now)
	if err := s.trackingRepo.UpdateActiveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithSessionID(session.ID).Info("Tracking session stopped")

	return session, nil
}

func (s *trackingService) CancelSession(ctx context.Context, sessionID primitive.ObjectID, requester *Principal) (*models.TrackingSession, error) {
	session, err := s.trackingRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !canViewSession(session, requester) {
		return nil, errs.PermissionDeniedError("not a party to this tracking session")
	}
	if session.IsTerminal() {
		return nil, errs.ConflictError("tracking session already ended")
	}

	session.Cancel(time.Now())
	if err := s.trackingRepo.UpdateActiveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithSessionID(session.ID).Info("Tracking session cancelled")

	return session, nil
}

func (s *trackingService) GetSession(ctx context.Context, sessionID primitive.ObjectID, requester *Principal) (*TrackingSessionView, error) {
	session, err := s.trackingRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !canViewSession(session, requester) {
		return nil, errs.PermissionDeniedError("not a party to this tracking session")
	}

	return s.projectSession(session, requester), nil
}

func (s *trackingService) GetActiveSessionByBooking(ctx context.Context, bookingID primitive.ObjectID, requester *Principal) (*TrackingSessionView, error) {
	session, err := s.trackingRepo.GetActiveSessionByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !canViewSession(session, requester) {
		return nil, errs.PermissionDeniedError("not a party to this tracking session")
	}

	return s.projectSession(session, requester), nil
}

func (s *trackingService) ExpireOverdueSessions(ctx context.Context) (int, error) {
	sessions, err := s.trackingRepo.ListActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	expired := 0
	for _, session := range sessions {
		if !session.ExpireIfOverdue(now) {
			continue
		}
		if err := s.trackingRepo.UpdateActiveSession(ctx, session); err != nil {
			// A concurrent writer already moved the session on; skip it.
			if isNotFound(err) {
				continue
			}
			return expired, err
		}
		expired++
		s.logger.WithSessionID(session.ID).Warn("Tracking session expired")
	}

	return expired, nil
}

func canViewSession(session *models.TrackingSession, requester *Principal) bool {
	if requester.Role == models.UserRoleOperator {
		return true
	}
	return session.FundiID == requester.UserID || session.ClientID == requester.UserID
}

// projectSession computes derived fields and applies the precision mask when
// the viewer is the observing client and precise sharing is off. The mask is
// a read-time projection; stored samples are never coarsened.
func (s *trackingService) projectSession(session *models.TrackingSession, requester *Principal) *TrackingSessionView {
	view := &TrackingSessionView{Session: session}

	if distance, ok := session.DistanceToTargetMeters(); ok {
		view.DistanceToTargetMeters = &distance
	}
	if eta, ok := session.ETASeconds(); ok {
		view.ETASeconds = &eta
	}

	maskForViewer := !session.Settings.SharePreciseLocation &&
		requester.Role != models.UserRoleOperator &&
		requester.UserID == session.ClientID

	if maskForViewer {
		masked := *session
		masked.Samples = make([]models.LocationSample, len(session.Samples))
		for i, sample := range session.Samples {
			sample.Latitude = utils.MaskCoordinate(sample.Latitude)
			sample.Longitude = utils.MaskCoordinate(sample.Longitude)
			masked.Samples[i] = sample
		}
		masked.Geofence.Address = ""
		view.Session = &masked
		view.Masked = true
	}

	return view
}

func isNotFound(err error) bool {
	var typed errs.Error
	return errors.As(err, &typed) && typed.Kind() == errs.KindNotFound
}
