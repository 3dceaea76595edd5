package account

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/metrics"
)

const minPasswordLength = 8

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// TokenIssuer signs access tokens for a client.
type TokenIssuer interface {
	Issue(subject, tenantID, email string, roles []string) (string, time.Time, error)
}

// SecretHasher hashes and checks passwords and PINs.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) (bool, error)
}

type Service struct {
	clients     ClientRepository
	provisioner Provisioner
	hasher      SecretHasher
	issuer      TokenIssuer
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewService(clients ClientRepository, provisioner Provisioner, hasher SecretHasher, issuer TokenIssuer, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		clients:     clients,
		provisioner: provisioner,
		hasher:      hasher,
		issuer:      issuer,
		metrics:     m,
		logger:      logger,
	}
}

// Login checks email and password and issues a token scoped to the client's
// tenant. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, in *LoginInput) (*LoginResult, error) {
	res, err := s.login(ctx, in)
	s.metrics.AuthAttempt("password", err == nil)
	return res, err
}

func (s *Service) login(ctx context.Context, in *LoginInput) (*LoginResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	c, err := s.clients.GetByEmail(ctx, email)
	if apperr.IsNotFound(err) {
		return nil, apperr.Auth("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(c.PasswordHash, in.Password)
	if err != nil {
		return nil, apperr.Internal("failed to verify credentials", err)
	}
	if !ok {
		return nil, apperr.Auth("invalid email or password")
	}
	if !c.IsActive {
		return nil, apperr.Forbidden("client account is disabled")
	}

	token, exp, err := s.issuer.Issue(c.ID.String(), c.TenantID, c.Email, []string{c.Role})
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}
	s.logger.Info().Str("client_id", c.ID.String()).Str("tenant", c.TenantID).Msg("client logged in")
	return &LoginResult{Token: token, ExpiresAt: exp, Client: c}, nil
}

// Me returns the authenticated client.
func (s *Service) Me(ctx context.Context) (*Client, error) {
	id, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.clients.GetByID(ctx, id)
}

// VerifyPIN checks pin against the caller's stored PIN. A client without a
// PIN never verifies.
func (s *Service) VerifyPIN(ctx context.Context, pin string) error {
	c, err := s.Me(ctx)
	if err != nil {
		return err
	}
	ok := false
	if c.PinHash != nil {
		if ok, err = s.hasher.Verify(*c.PinHash, pin); err != nil {
			return apperr.Internal("failed to verify pin", err)
		}
	}
	s.metrics.AuthAttempt("pin", ok)
	if !ok {
		return apperr.Auth("invalid pin")
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, in *PasswordInput) error {
	if len(in.NewPassword) < minPasswordLength {
		return apperr.Validation("new password must be at least %d characters", minPasswordLength)
	}
	c, err := s.Me(ctx)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(c.PasswordHash, in.CurrentPassword)
	if err != nil {
		return apperr.Internal("failed to verify password", err)
	}
	if !ok {
		return apperr.Auth("current password is incorrect")
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	return s.clients.UpdatePassword(ctx, c.ID, hash)
}

// ChangePIN sets a new PIN. Replacing an existing PIN requires the current
// one.
func (s *Service) ChangePIN(ctx context.Context, in *PinInput) error {
	if !pinPattern.MatchString(in.NewPin) {
		return apperr.Validation("pin must be 4 to 6 digits")
	}
	c, err := s.Me(ctx)
	if err != nil {
		return err
	}
	if c.HasPIN {
		if in.CurrentPin == nil || *in.CurrentPin == "" {
			return apperr.Validation("current pin is required")
		}
		ok, err := s.hasher.Verify(*c.PinHash, *in.CurrentPin)
		if err != nil {
			return apperr.Internal("failed to verify pin", err)
		}
		if !ok {
			return apperr.Auth("current pin is incorrect")
		}
	}
	hash, err := s.hasher.Hash(in.NewPin)
	if err != nil {
		return apperr.Internal("failed to hash pin", err)
	}
	return s.clients.UpdatePin(ctx, c.ID, hash)
}

// CreateClient provisions the tenant schema and then registers the client.
// Provisioning is idempotent, so a failed registration can be retried.
func (s *Service) CreateClient(ctx context.Context, in *ClientInput) (*Client, error) {
	c, err := s.newClient(in)
	if err != nil {
		return nil, err
	}
	if existing, err := s.clients.GetByEmail(ctx, c.Email); err == nil && existing != nil {
		return nil, apperr.Conflict("a client with email %s already exists", c.Email)
	} else if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}

	if err := s.provisioner.Provision(ctx, c.TenantID); err != nil {
		return nil, apperr.Internal("failed to provision tenant", err)
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("client_id", c.ID.String()).Str("tenant", c.TenantID).Msg("client created")
	return c, nil
}

func (s *Service) newClient(in *ClientInput) (*Client, error) {
	c := &Client{
		TenantID: strings.TrimSpace(in.TenantID),
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Role:     in.Role,
		IsActive: true,
	}
	if c.Role == "" {
		c.Role = auth.RoleAdmin
	}
	switch {
	case c.Name == "":
		return nil, apperr.Validation("name is required")
	case !db.ValidTenantID(c.TenantID):
		return nil, apperr.Validation("tenant id must contain only letters, digits and underscores")
	case c.Role != auth.RoleAdmin && c.Role != auth.RoleStaff:
		return nil, apperr.Validation("invalid role: %s", c.Role)
	case len(in.Password) < minPasswordLength:
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
		return nil, apperr.Validation("invalid email: %s", in.Email)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}
	c.PasswordHash = hash

	if in.Pin != nil && *in.Pin != "" {
		if !pinPattern.MatchString(*in.Pin) {
			return nil, apperr.Validation("pin must be 4 to 6 digits")
		}
		pinHash, err := s.hasher.Hash(*in.Pin)
		if err != nil {
			return nil, apperr.Internal("failed to hash pin", err)
		}
		c.PinHash = &pinHash
		c.HasPIN = true
	}
	return c, nil
}

func (s *Service) ListClients(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	return s.clients.List(ctx, limit, offset)
}

func (s *Service) SetClientStatus(ctx context.Context, id uuid.UUID, in *StatusInput) (*Client, error) {
	if in.IsActive == nil {
		return nil, apperr.Validation("isActive is required")
	}
	if err := s.clients.SetActive(ctx, id, *in.IsActive); err != nil {
		return nil, err
	}
	return s.clients.GetByID(ctx, id)
}

func callerID(ctx context.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, apperr.Auth("authentication required")
	}
	return id, nil
}
