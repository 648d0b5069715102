package verify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// MemberRoleName is the capability tag granted on successful verification.
const MemberRoleName = "member"

// RoleGranter is the slice of role synchronization verification needs.
type RoleGranter interface {
	GrantRole(ctx context.Context, userID int64, roleName string) error
}

// TokenMailer delivers a minted token to the address being verified.
type TokenMailer interface {
	SendToken(ctx context.Context, email, token string) error
}

// Service runs the two-step verification flow: Request mints and mails a
// token, Redeem authenticates it and records the verified identity.
type Service struct {
	cipher      *TokenCipher
	users       user.Repository
	roles       RoleGranter
	mailer      TokenMailer
	emailDomain string
	logger      *slog.Logger
}

// NewService wires the verification service. emailDomain restricts which
// addresses may verify; empty allows any.
func NewService(
	cipher *TokenCipher,
	users user.Repository,
	roles RoleGranter,
	mailer TokenMailer,
	emailDomain string,
	logger *slog.Logger,
) *Service {
	return &Service{
		cipher:      cipher,
		users:       users,
		roles:       roles,
		mailer:      mailer,
		emailDomain: emailDomain,
		logger:      logger.With("component", "verify_service"),
	}
}

// Request mints a token for userID/email and mails it out.
func (s *Service) Request(ctx context.Context, userID int64, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return shared.NewDomainError("verify", "Request", shared.ErrInvalidInput,
			"malformed email address")
	}
	if s.emailDomain != "" && !strings.HasSuffix(email, "@"+s.emailDomain) {
		return shared.NewDomainError("verify", "Request", shared.ErrInvalidInput,
			"email must belong to "+s.emailDomain)
	}

	token, err := s.cipher.Seal(userID, email)
	if err != nil {
		return err
	}
	if err := s.mailer.SendToken(ctx, email, token); err != nil {
		return shared.WrapError("verify", "Request", shared.ErrSideEffectFailed,
			"token mail delivery failed", err)
	}

	s.logger.Info("verification token sent", "user_id", userID)
	return nil
}

// Redeem authenticates the token, marks the user verified and grants the
// member role. The role grant is best-effort: a failure is logged but the
// recorded verification stands, and role re-sync can repair it later.
func (s *Service) Redeem(ctx context.Context, token string) (int64, error) {
	userID, email, err := s.cipher.Open(token)
	if err != nil {
		return 0, err
	}

	if err := s.users.MarkVerified(ctx, userID, email); err != nil {
		return 0, err
	}

	if err := s.roles.GrantRole(ctx, userID, MemberRoleName); err != nil {
		s.logger.Error("member role grant failed", "user_id", userID, "error", err)
	}

	s.logger.Info("identity verified", "user_id", userID)
	return userID, nil
}
