package services

import (
	"context"
	"errors"

	"fundilink/internal/models"
	"fundilink/internal/repositories/interfaces"
	"fundilink/internal/utils"
	"fundilink/pkg/logger"

	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal is the authenticated identity attached to a connection or request.
type Principal struct {
	UserID primitive.ObjectID
	Role   models.UserRole
	User   *models.User
}

type AuthService interface {
	// Authenticate verifies an access token and resolves the account behind
	// it. Every failure carries errs.KindUnauthenticated so callers can
	// reject without leaking internals; the message distinguishes the cause.
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

type authService struct {
	userRepo  interfaces.UserRepository
	jwtSecret string
	logger    *logger.Logger
}

func NewAuthService(userRepo interfaces.UserRepository, jwtSecret string, log *logger.Logger) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

func (s *authService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, errs.UnauthenticatedError("missing token")
	}

	claims, err := utils.ValidateToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, errs.UnauthenticatedError("token expired")
		}
		return nil, errs.UnauthenticatedError("invalid token")
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, errs.UnauthenticatedError("invalid token")
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		var typed errs.Error
		if errors.As(err, &typed) && typed.Kind() == errs.KindNotFound {
			return nil, errs.UnauthenticatedError("user not found")
		}
		return nil, err
	}

	if !user.IsActive() {
		return nil, errs.UnauthenticatedError("user inactive")
	}

	return &Principal{
		UserID: user.ID,
		Role:   user.Role,
		User:   user,
	}, nil
}
