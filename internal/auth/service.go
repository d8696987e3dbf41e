package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"medlocator/m/domain"
	"medlocator/m/internal/apperr"
	"medlocator/m/internal/store"
)

// Service handles registration, login and approval.
type Service struct {
	store  *store.Store
	tokens *Tokens
	gate   Gate
	logger *zap.Logger
}

func NewService(s *store.Store, tokens *Tokens, gate Gate, logger *zap.Logger) *Service {
	return &Service{store: s, tokens: tokens, gate: gate, logger: logger}
}

// ProfileInput describes a pharmacy profile supplied at registration.
type ProfileInput struct {
	Name      string
	Address   string
	Phone     string
	Latitude  *float64
	Longitude *float64
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
	Pharmacy *ProfileInput
}

// Session is the outcome of registration or login. Token is empty when the
// approval gate withholds a session.
type Session struct {
	Account  domain.Account
	Pharmacy *domain.Pharmacy
	Token    string
}

// Register creates an account and, for pharmacy owners who supplied one, the
// pharmacy profile, atomically. Only user and pharmacy roles may self-register.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return Session{}, apperr.Validation("username, email and password are required")
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if in.Role != domain.RoleUser && in.Role != domain.RolePharmacy {
		return Session{}, apperr.Validation("role must be user or pharmacy")
	}
	if in.Pharmacy != nil && in.Role != domain.RolePharmacy {
		return Session{}, apperr.Validation("only pharmacy accounts can register a pharmacy")
	}
	if in.Pharmacy != nil && strings.TrimSpace(in.Pharmacy.Name) == "" {
		return Session{}, apperr.Validation("pharmacy_name is required")
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, apperr.Internal("unable to secure password", err)
	}

	account := domain.Account{
		Username:     in.Username,
		Email:        strings.ToLower(in.Email),
		PasswordHash: hashed,
		Role:         in.Role,
		IsApproved:   domain.ApprovedAtCreation(in.Role),
	}
	var pharmacy *domain.Pharmacy
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		id, err := tx.CreateAccount(ctx, account)
		if err != nil {
			return err
		}
		account.ID = id
		if in.Pharmacy == nil {
			return nil
		}
		p, err := tx.SavePharmacy(ctx, domain.Pharmacy{
			OwnerID:   id,
			Name:      strings.TrimSpace(in.Pharmacy.Name),
			Address:   in.Pharmacy.Address,
			Phone:     in.Pharmacy.Phone,
			Latitude:  in.Pharmacy.Latitude,
			Longitude: in.Pharmacy.Longitude,
		})
		if err != nil {
			return err
		}
		pharmacy = &p
		return nil
	})
	if errors.Is(err, store.ErrDuplicate) {
		return Session{}, apperr.Conflict("username or email already exists")
	}
	if err != nil {
		return Session{}, apperr.Internal("unable to complete registration", err)
	}

	s.logger.Info("account registered",
		zap.Int64("account_id", account.ID),
		zap.String("role", string(account.Role)),
		zap.String("state", string(account.State())))

	session := Session{Account: account, Pharmacy: pharmacy}
	if s.gate.AllowSession(IdentityOf(account)) != nil {
		return session, nil
	}
	if session.Token, err = s.tokens.Issue(IdentityOf(account)); err != nil {
		return Session{}, apperr.Internal("unable to generate token", err)
	}
	return session, nil
}

// Login authenticates by username or email. A pending pharmacy account is
// refused under the strict policy and no token is issued.
func (s *Service) Login(ctx context.Context, login, password string) (Session, error) {
	account, err := s.store.AccountByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, apperr.Unauthorized("invalid username or password")
	}
	if err != nil {
		return Session{}, apperr.Internal("unable to load account", err)
	}
	if !CheckPassword(account.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("invalid username or password")
	}
	if err := s.gate.AllowSession(IdentityOf(account)); err != nil {
		s.logger.Info("login refused by approval gate", zap.Int64("account_id", account.ID))
		return Session{}, err
	}

	token, err := s.tokens.Issue(IdentityOf(account))
	if err != nil {
		return Session{}, apperr.Internal("unable to generate token", err)
	}
	session := Session{Account: account, Token: token}
	if account.Role == domain.RolePharmacy {
		p, err := s.store.PharmacyByOwner(ctx, account.ID)
		switch {
		case err == nil:
			session.Pharmacy = &p
		case !errors.Is(err, store.ErrNotFound):
			return Session{}, apperr.Internal("unable to load pharmacy", err)
		}
	}
	return session, nil
}

// Resolve turns a bearer token into the caller's current identity. The
// account is reloaded so approval changes apply to existing tokens.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	accountID, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, apperr.Unauthorized("invalid token")
	}
	account, err := s.store.AccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return Identity{}, apperr.Internal("unable to load account", err)
	}
	return IdentityOf(account), nil
}

// Account loads the caller's account.
func (s *Service) Account(ctx context.Context, id Identity) (domain.Account, error) {
	account, err := s.store.AccountByID(ctx, id.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, apperr.NotFound("account not found")
	}
	if err != nil {
		return domain.Account{}, apperr.Internal("unable to load account", err)
	}
	return account, nil
}

// ResetPassword replaces the caller's password.
func (s *Service) ResetPassword(ctx context.Context, id Identity, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("new_password is required")
	}
	hashed, err := HashPassword(newPassword)
	if err != nil {
		return apperr.Internal("unable to secure password", err)
	}
	if err := s.store.UpdatePassword(ctx, id.AccountID, hashed); err != nil {
		return apperr.Internal("unable to update password", err)
	}
	return nil
}

// Approve moves an account from pending to approved. Only administrators may
// call it.
func (s *Service) Approve(ctx context.Context, caller *Identity, accountID int64) error {
	if err := s.gate.RequireAdmin(caller); err != nil {
		return err
	}
	err := s.store.SetApproved(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("account not found")
	}
	if err != nil {
		return apperr.Internal("unable to approve account", err)
	}
	s.logger.Info("account approved", zap.Int64("account_id", accountID), zap.Int64("by", caller.AccountID))
	return nil
}

// Pending lists pharmacy accounts awaiting approval.
func (s *Service) Pending(ctx context.Context, caller *Identity) ([]store.PendingPharmacy, error) {
	if err := s.gate.RequireAdmin(caller); err != nil {
		return nil, err
	}
	rows, err := s.store.PendingPharmacies(ctx)
	if err != nil {
		return nil, apperr.Internal("unable to list pending pharmacies", err)
	}
	return rows, nil
}

// EnsureAdmin creates an approved administrator when username is not taken.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.store.AccountByLogin(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if email == "" {
		email = username + "@localhost"
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	id, err := s.store.CreateAccount(ctx, domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		Role:         domain.RoleAdmin,
		IsApproved:   domain.ApprovedAtCreation(domain.RoleAdmin),
	})
	if err != nil {
		return err
	}
	s.logger.Info("administrator created", zap.Int64("account_id", id), zap.String("username", username))
	return nil
}
