package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkghash "github.com/avdeyev/identity-service/pkg/hash"
	"github.com/avdeyev/identity-service/pkg/logging"

	"github.com/avdeyev/identity-service/internal/events"
	"github.com/avdeyev/identity-service/internal/mail"
	"github.com/avdeyev/identity-service/internal/models"
	"github.com/avdeyev/identity-service/internal/repo"
	"github.com/avdeyev/identity-service/internal/search"
	"github.com/avdeyev/identity-service/internal/tokens"
)

// AccountService orchestrates the credential store, the token service and
// the outbound collaborators. Events and search are optional; their nil
// forms drop the calls.
type AccountService struct {
	Repo   *repo.GormRepo
	Tokens *tokens.Service
	Mailer mail.Mailer
	Events *events.Producer
	Search *search.Indexer
}

// Identity is the authenticated caller, recovered from the session token.
type Identity struct {
	UserID uint64
	Role   string
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type UpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	AvatarRef *string
}

type LoginResult struct {
	Token  string
	Role   string
	UserID uint64
}

// normalizeEmail fixes the case policy: addresses are compared and stored
// lowercase, so uniqueness is case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account unverified and hands a verification token to
// the mailer. Mail failure does not undo the registration; the token can be
// re-sent. The id comes out of the store's allocation transaction.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Profile, error) {
	l := logging.FromContext(ctx).With("svc", "account.register")

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	pwHash, err := pkghash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_failed", "reason", "hash", "error", err)
		return nil, err
	}

	user := models.User{
		Email:        email,
		PasswordHash: pwHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         models.RoleUser,
	}
	if err := s.Repo.Create(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			l.Warn("register_failed", "reason", "duplicate_email")
			return nil, ErrDuplicateEmail
		}
		l.Error("register_failed", "error", err)
		return nil, err
	}

	token, err := s.Tokens.Issue(email, tokens.PurposeVerify, tokens.VerifyTTL)
	if err != nil {
		l.Error("verify_token_issue_failed", "error", err)
	} else if err := s.Mailer.SendVerification(ctx, email, token); err != nil {
		l.Warn("verification_mail_failed", "error", err)
	}

	s.publish(ctx, user.ID, map[string]any{
		"type":  events.TypeRegistered,
		"id":    user.ID,
		"email": user.Email,
	})
	s.index(ctx, profileOf(&user))

	l.Info("registered", "id", user.ID)
	p := profileOf(&user)
	return p, nil
}

// Login verifies the password and issues a session token. The verified gate
// sits before the credential comparison, so an unverified account never
// reaches the success path no matter what was typed.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "account.login")

	email = normalizeEmail(email)
	p, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !p.Verified {
		l.Warn("login_blocked", "reason", "not_verified", "id", p.ID)
		return nil, ErrNotVerified
	}

	p, err = s.Repo.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidCredentials) || errors.Is(err, repo.ErrNotFound) {
			l.Warn("login_failed", "reason", "bad_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, err := s.Tokens.IssueSession(p.ID, p.Role)
	if err != nil {
		l.Error("session_token_issue_failed", "error", err)
		return nil, err
	}

	l.Info("login_successful", "id", p.ID)
	return &LoginResult{Token: token, Role: p.Role, UserID: p.ID}, nil
}

// RequestPasswordReset issues a reset token and hands it to the mailer. An
// unknown address is reported as such; the endpoint has always leaked
// existence and changing that is a product decision, not ours.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "account.forgot_password")

	email = normalizeEmail(email)
	if _, err := s.Repo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	token, err := s.Tokens.Issue(email, tokens.PurposeReset, tokens.ResetTTL)
	if err != nil {
		l.Error("reset_token_issue_failed", "error", err)
		return err
	}
	if err := s.Mailer.SendResetPassword(ctx, email, token); err != nil {
		l.Error("reset_mail_failed", "error", err)
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	l.Info("reset_mail_sent")
	return nil
}

// ResetPassword trades a valid reset token for a new password hash. Tokens
// stay valid until expiry; there is no consumed-token table.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "account.reset_password")

	email, err := s.Tokens.Verify(token, tokens.PurposeReset)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}

	pwHash, err := pkghash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.SetPassword(ctx, email, pwHash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Account vanished after issuance; to the caller that token
			// points nowhere.
			return ErrInvalidToken
		}
		return err
	}

	if p, err := s.Repo.GetByEmail(ctx, email); err == nil {
		s.publish(ctx, p.ID, map[string]any{"type": events.TypePasswordReset, "id": p.ID})
	}
	l.Info("password_reset")
	return nil
}

// VerifyEmail flips the account to verified. Verified is terminal, so a
// second still-valid token is a no-op success.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	l := logging.FromContext(ctx).With("svc", "account.verify_email")

	email, err := s.Tokens.Verify(token, tokens.PurposeVerify)
	if err != nil {
		return err
	}
	if err := s.Repo.SetVerified(ctx, email); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if p, err := s.Repo.GetByEmail(ctx, email); err == nil {
		s.publish(ctx, p.ID, map[string]any{"type": events.TypeVerified, "id": p.ID})
	}
	l.Info("email_verified")
	return nil
}

// UpdateProfile merges the supplied fields. Only the account owner or an
// admin may touch a record.
func (s *AccountService) UpdateProfile(ctx context.Context, caller Identity, targetID uint64, in UpdateInput) (*models.Profile, error) {
	if err := s.authorize(caller, targetID); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.FirstName != nil {
		fields["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		fields["last_name"] = *in.LastName
	}
	if in.Email != nil {
		fields["email"] = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		fields["phone"] = *in.Phone
	}
	if in.AvatarRef != nil {
		fields["avatar_ref"] = *in.AvatarRef
	}

	p, err := s.Repo.UpdateProfile(ctx, targetID, fields)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repo.ErrDuplicateEmail):
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	s.index(ctx, p)
	return p, nil
}

// Delete removes the account permanently. Missing ids succeed; the removal
// is idempotent all the way down.
func (s *AccountService) Delete(ctx context.Context, caller Identity, id uint64) error {
	if err := s.authorize(caller, id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, id, map[string]any{"type": events.TypeDeleted, "id": id})
	s.deindex(ctx, id)
	return nil
}

// CurrentProfile returns the caller's own record.
func (s *AccountService) CurrentProfile(ctx context.Context, callerID uint64) (*models.Profile, error) {
	p, err := s.Repo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *AccountService) GetByID(ctx context.Context, id uint64) (*models.Profile, error) {
	p, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *AccountService) List(ctx context.Context) ([]models.Profile, error) {
	return s.Repo.List(ctx)
}

func (s *AccountService) authorize(caller Identity, targetID uint64) error {
	if caller.UserID == 0 {
		return ErrUnauthorized
	}
	if caller.UserID != targetID && caller.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *AccountService) publish(ctx context.Context, id uint64, event map[string]any) {
	if err := s.Events.Publish(ctx, fmt.Sprint(id), event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "error", err)
	}
}

func (s *AccountService) index(ctx context.Context, p *models.Profile) {
	if err := s.Search.IndexProfile(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "id", p.ID, "error", err)
	}
}

func (s *AccountService) deindex(ctx context.Context, id uint64) {
	if err := s.Search.Remove(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("search_remove_failed", "id", id, "error", err)
	}
}

func profileOf(u *models.User) *models.Profile {
	return &models.Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		AvatarRef: u.AvatarRef,
		Role:      u.Role,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}
