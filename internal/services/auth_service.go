package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/taskflow-api/internal/auth"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken            = newError(ErrConflict, "email is already registered")
	ErrInvalidEmail          = newError(ErrValidation, "a valid email is required")
	ErrPasswordTooShort      = newError(ErrValidation, fmt.Sprintf("password must be at least %d characters", constants.MinPasswordLength))
	ErrInvalidCredentials    = newError(ErrUnauthenticated, "invalid email or password")
	ErrInvalidToken          = newError(ErrUnauthenticated, "invalid or expired token")
	ErrUserNotFound          = newError(ErrNotFound, "user not found")
	ErrOrganizationExists    = newError(ErrConflict, "an organization with this name already exists")
	ErrInvalidOrgName        = newError(ErrValidation, "organization name must contain letters or digits")
	ErrAmbiguousRegistration = newError(ErrValidation, "provide either organization_name or invite_token, not both")
	ErrFailedToHashPassword  = errors.New("failed to hash password")
)

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo    repository.UserRepository
	orgRepo     repository.OrganizationRepository
	invitations *InvitationService
	tokens      *auth.TokenManager
	now         func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	invitations *InvitationService,
	tokens *auth.TokenManager,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		orgRepo:     orgRepo,
		invitations: invitations,
		tokens:      tokens,
		now:         time.Now,
	}
}

// RegisterInput represents the information needed to create a user.
// OrganizationName creates a new organization with the user as admin;
// InviteToken joins an existing one with the invited role.
type RegisterInput struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	OrganizationName string
	InviteToken      string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Register creates a new user, optionally creating or joining an organization.
func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	email := models.NormalizeEmail(input.Email)
	if !looksLikeEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	orgName := strings.TrimSpace(input.OrganizationName)
	inviteToken := strings.TrimSpace(input.InviteToken)
	if orgName != "" && inviteToken != "" {
		return nil, ErrAmbiguousRegistration
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         models.RoleMember,
		IsActive:     true,
	}

	switch {
	case orgName != "":
		err = s.createWithOrganization(user, orgName)
	case inviteToken != "":
		err = s.invitations.redeem(inviteToken, user)
	default:
		err = s.userRepo.Create(user)
	}
	if err != nil {
		return nil, err
	}

	logs.Logger.WithField("user_id", user.ID).Info("User registered")
	return s.issue(user)
}

func (s *AuthService) createWithOrganization(user *models.User, name string) error {
	org, err := newOrganization(name)
	if err != nil {
		return err
	}

	taken, err := s.orgRepo.NameOrSlugTaken(org.NameKey, org.Slug, 0)
	if err != nil {
		return fmt.Errorf("failed to check organization name: %w", err)
	}
	if taken {
		return ErrOrganizationExists
	}

	if err := s.userRepo.CreateWithOrganization(user, org); err != nil {
		return fmt.Errorf("failed to complete registration: %w", err)
	}
	user.Organization = org
	return nil
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials, records the login time and issues a token.
func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return s.issue(user)
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindActiveByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Profile returns a user with its organization loaded.
func (s *AuthService) Profile(userID uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.OrganizationID != nil {
		org, err := s.orgRepo.FindByID(*user.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load organization: %w", err)
		}
		user.Organization = org
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// newOrganization builds an organization with default settings from a display name.
func newOrganization(name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	slug := utils.Slugify(name)
	if slug == "" {
		return nil, ErrInvalidOrgName
	}

	return &models.Organization{
		Name:     name,
		NameKey:  strings.ToLower(name),
		Slug:     slug,
		Settings: datatypes.NewJSONType(models.DefaultOrganizationSettings()),
		IsActive: true,
	}, nil
}

func looksLikeEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\n")
}
