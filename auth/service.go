package auth

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/logger"
)

// InvitationAssigner gives a freshly registered company its first code.
// Implemented by *company.Service.
type InvitationAssigner interface {
	AssignInvitationCode(ctx context.Context, st billing.Store, company string, limit int) (string, error)
}

// Service owns account creation and login.
type Service struct {
	store       billing.TxStore
	issuer      *Issuer
	invitations InvitationAssigner
	log         *logger.Logger

	// InvitationLimit is the join quota given to new companies.
	InvitationLimit int

	Now func() time.Time
}

func NewService(store billing.TxStore, issuer *Issuer, invitations InvitationAssigner, log *logger.Logger) *Service {
	return &Service{
		store:           store,
		issuer:          issuer,
		invitations:     invitations,
		log:             log,
		InvitationLimit: 10,
		Now:             time.Now,
	}
}

// Issuer returns the token issuer, for request authentication.
func (s *Service) Issuer() *Issuer { return s.issuer }

// RegisterInput is a self-service sign-up. Role is company or employee.
type RegisterInput struct {
	Username string
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
	Role     billing.Role
}

// Register creates the account and returns a token for it. Companies
// start on the free plan with a zero balance and an invitation code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, *billing.Account, error) {
	if in.Role != billing.RoleCompany && in.Role != billing.RoleEmployee {
		return "", nil, billing.NewValidationError("role", "role must be one of [employee, company]")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return "", nil, err
	}

	acct := billing.Account{
		Username:     in.Username,
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		Phone:        in.Phone,
		Address:      in.Address,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.Now().UTC(),
	}
	if in.Role == billing.RoleCompany {
		acct.Balance = billing.Zero
		acct.Plan = billing.PlanFree
	}

	err = s.store.WithTx(ctx, func(st billing.Store) error {
		if acct.Email != "" {
			existing, err := st.ListAccounts(ctx, billing.AccountFilter{Email: acct.Email})
			if err != nil {
				return errors.Wrap(err, "check email")
			}
			if len(existing) > 0 {
				return billing.Messagef(billing.ErrConflict, "username or email already exists")
			}
		}
		if err := st.CreateAccount(ctx, acct); err != nil {
			if errors.Is(err, billing.ErrConflict) {
				return billing.Messagef(billing.ErrConflict, "username or email already exists")
			}
			return errors.Wrap(err, "create account")
		}
		if acct.Role != billing.RoleCompany || s.invitations == nil {
			return nil
		}
		code, err := s.invitations.AssignInvitationCode(ctx, st, acct.Username, s.InvitationLimit)
		if err != nil {
			return err
		}
		acct.InvitationCode = code
		acct.InvitationLimit = s.InvitationLimit
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	token, err := s.issuer.Issue(acct)
	if err != nil {
		return "", nil, err
	}
	s.log.WithContext(ctx).Infow("account registered", "username", acct.Username, "role", string(acct.Role))
	return token, &acct, nil
}

// Login accepts a username or an email, not both.
func (s *Service) Login(ctx context.Context, username, email, password string) (string, error) {
	if (username == "") == (email == "") {
		return "", billing.NewValidationError("", "Either username or email must be provided, but not both")
	}

	var acct *billing.Account
	if username != "" {
		a, err := s.store.GetAccount(ctx, username)
		if err != nil {
			return "", errors.Wrap(err, "load account")
		}
		acct = a
	} else {
		list, err := s.store.ListAccounts(ctx, billing.AccountFilter{Email: email})
		if err != nil {
			return "", errors.Wrap(err, "find account by email")
		}
		if len(list) > 0 {
			acct = &list[0]
		}
	}
	if acct == nil {
		return "", billing.Messagef(billing.ErrNotFound, "Username or email not found")
	}
	if err := ComparePassword(acct.PasswordHash, password); err != nil {
		s.log.WithContext(ctx).Infow("login rejected", "username", acct.Username)
		return "", billing.Messagef(billing.ErrUnauthenticated, "Wrong password")
	}
	return s.issuer.Issue(*acct)
}

// SeedAdmin creates the admin account if it doesn't exist yet.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	existing, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return errors.Wrap(err, "load admin")
	}
	if existing != nil {
		if existing.Role != billing.RoleAdmin {
			return errors.Newf("account %q exists and is not an admin", username)
		}
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	err = s.store.CreateAccount(ctx, billing.Account{
		Username:     username,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         billing.RoleAdmin,
		CreatedAt:    s.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "create admin")
	}
	s.log.Infow("admin account seeded", "username", username)
	return nil
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, username string) (*billing.Account, error) {
	acct, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "load account")
	}
	if acct == nil {
		return nil, billing.Messagef(billing.ErrNotFound, "User not found")
	}
	return acct, nil
}
