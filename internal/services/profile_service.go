package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/pkg/firebase"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultDisplayName = "User"

// ProfileService keeps the profile record in step with sign-ins.
type ProfileService struct {
	users       repositories.UserRepository
	adminEmails map[string]struct{}
	log         *zap.Logger
}

// NewProfileService creates a new ProfileService
func NewProfileService(users repositories.UserRepository, adminEmails []string, log *zap.Logger) *ProfileService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &ProfileService{users: users, adminEmails: admins, log: log.Named("profiles")}
}

func (s *ProfileService) roleFor(email string) models.Role {
	if _, ok := s.adminEmails[strings.ToLower(email)]; ok {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// Sync is called on every Firebase sign-in. It returns the existing profile
// for the identity, or creates one. An account registered earlier with the
// same email is linked to the Firebase UID instead of duplicated.
func (s *ProfileService) Sync(ctx context.Context, id firebase.Identity) (*models.User, bool, error) {
	user, err := s.users.GetUserByFirebaseUID(ctx, id.UID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, false, fmt.Errorf("looking up profile: %w", err)
	}

	if id.Email != "" {
		user, err = s.users.GetUserByEmail(ctx, id.Email)
		switch {
		case err == nil:
			user.FirebaseUID = id.UID
			if err := s.users.UpdateUser(ctx, user); err != nil {
				return nil, false, fmt.Errorf("linking profile: %w", err)
			}
			return user, false, nil
		case !errors.Is(err, repositories.ErrUserNotFound):
			return nil, false, fmt.Errorf("looking up profile: %w", err)
		}
	}

	name := id.Name
	if name == "" {
		name = defaultDisplayName
	}
	avatar := id.Picture
	if avatar == "" {
		avatar = models.DefaultAvatar(name)
	}
	user = &models.User{
		ID:          id.UID,
		Name:        name,
		Email:       id.Email,
		Avatar:      avatar,
		Role:        s.roleFor(id.Email),
		FirebaseUID: id.UID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserExists) {
			// Lost a race with a concurrent sign-in of the same identity.
			existing, err := s.users.GetUserByFirebaseUID(ctx, id.UID)
			if err != nil {
				return nil, false, fmt.Errorf("creating profile: %w", err)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("creating profile: %w", err)
	}
	s.log.Info("profile created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, true, nil
}

// Register creates an email/password account.
func (s *ProfileService) Register(ctx context.Context, req models.CreateLocalUserRequest) (*models.User, error) {
	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, repositories.ErrUserExists
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &models.User{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Email:    req.Email,
		Avatar:   models.DefaultAvatar(req.Name),
		Role:     s.roleFor(req.Email),
		Password: string(hashed),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks an email/password pair.
func (s *ProfileService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Update applies a profile edit.
func (s *ProfileService) Update(ctx context.Context, userID string, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Avatar != "" {
		user.Avatar = req.Avatar
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
