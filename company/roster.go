package company

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/warp/workforce-billing/billing"
)

// DefaultInvitationLimit is the join quota a new company starts with.
const DefaultInvitationLimit = 10

const maxCodeAttempts = 5

// RandomInvitationCode returns 6 random bytes as 12 upper-case hex chars.
func RandomInvitationCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Invitation is a company's current join code and remaining quota.
type Invitation struct {
	Code  string
	Limit int
}

// GenerateInvitationCode replaces the company's code and quota.
func (s *Service) GenerateInvitationCode(ctx context.Context, company string, limit int) (*Invitation, error) {
	if limit < 1 {
		return nil, billing.NewValidationError("invitation_limit", "invitation_limit must be greater than or equal to 1")
	}

	var inv *Invitation
	err := s.store.WithTx(ctx, func(st billing.Store) error {
		if _, err := loadCompany(ctx, st, company); err != nil {
			return err
		}
		code, err := s.AssignInvitationCode(ctx, st, company, limit)
		if err != nil {
			return err
		}
		inv = &Invitation{Code: code, Limit: limit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("invitation code generated", "company", company, "limit", limit)
	return inv, nil
}

// AssignInvitationCode draws codes until one is free and stores it on
// company. Must run inside WithTx; registration uses it too.
func (s *Service) AssignInvitationCode(ctx context.Context, st billing.Store, company string, limit int) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.NewCode()
		if err != nil {
			return "", err
		}
		owner, err := st.FindByInvitationCode(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "check invitation code")
		}
		if owner != nil && owner.Username != company {
			continue
		}
		err = st.SetInvitation(ctx, company, code, limit)
		if errors.Is(err, billing.ErrConflict) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "store invitation code")
		}
		return code, nil
	}
	return "", errors.Newf("no free invitation code after %d attempts", maxCodeAttempts)
}

// JoinCompany links employee to the company owning code and uses one unit
// of its quota. A full roster or an exhausted quota reads as an invalid
// code to the employee.
func (s *Service) JoinCompany(ctx context.Context, employee, code string) (*billing.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, billing.NewValidationError("invitation_code", "Invitation code must be provided")
	}

	var joined *billing.Account
	err := s.store.WithTx(ctx, func(st billing.Store) error {
		emp, err := st.GetAccount(ctx, employee)
		if err != nil {
			return errors.Wrap(err, "load employee")
		}
		if emp == nil || emp.Role != billing.RoleEmployee {
			return billing.Messagef(billing.ErrNotFound, "Employee not found")
		}

		company, err := st.FindByInvitationCode(ctx, code)
		if err != nil {
			return errors.Wrap(err, "find invitation code")
		}
		if company == nil || company.InvitationLimit <= 0 {
			return billing.NewValidationError("invitation_code", "Invalid invitation code")
		}

		switch emp.Company {
		case "":
		case company.Username:
			return billing.Messagef(billing.ErrConflict, "You have joined this company")
		default:
			return billing.Messagef(billing.ErrConflict, "You have joined on a company")
		}

		n, err := st.CountEmployees(ctx, company.Username)
		if err != nil {
			return errors.Wrap(err, "count employees")
		}
		if n >= company.Plan.RosterLimit() {
			return billing.NewValidationError("invitation_code", "Invalid invitation code")
		}

		ok, err := st.ConsumeInvitation(ctx, company.Username)
		if err != nil {
			return errors.Wrap(err, "consume invitation")
		}
		if !ok {
			return billing.NewValidationError("invitation_code", "Invalid invitation code")
		}
		if err := st.SetEmployer(ctx, employee, company.Username); err != nil {
			return errors.Wrap(err, "set employer")
		}
		joined = company
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("employee joined company", "employee", employee, "company", joined.Username)
	return joined, nil
}

// RemoveEmployee takes employee off company's roster.
func (s *Service) RemoveEmployee(ctx context.Context, company, employee string) error {
	err := s.store.WithTx(ctx, func(st billing.Store) error {
		if _, err := s.rosterMember(ctx, st, company, employee); err != nil {
			return err
		}
		return errors.Wrap(st.SetEmployer(ctx, employee, ""), "clear employer")
	})
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Infow("employee removed", "company", company, "employee", employee)
	return nil
}

// EmployeeQuery filters and pages ListEmployees.
type EmployeeQuery struct {
	Name  string
	Limit int
	Page  int
}

// EmployeePage is one page of a roster plus the unfiltered roster size.
type EmployeePage struct {
	Total     int
	Employees []billing.Account
}

// ListEmployees returns company's roster filtered by name
// (case-insensitive substring), ordered by username.
func (s *Service) ListEmployees(ctx context.Context, company string, q EmployeeQuery) (*EmployeePage, error) {
	if _, err := loadCompany(ctx, s.store, company); err != nil {
		return nil, err
	}
	total, err := s.store.CountEmployees(ctx, company)
	if err != nil {
		return nil, errors.Wrap(err, "count employees")
	}
	emps, err := s.store.ListAccounts(ctx, billing.AccountFilter{
		Role:         billing.RoleEmployee,
		Company:      company,
		NameContains: q.Name,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list employees")
	}
	return &EmployeePage{Total: total, Employees: billing.Paginate(emps, q.Limit, q.Page)}, nil
}

// GetEmployee returns an employee. Companies may only read their own.
func (s *Service) GetEmployee(ctx context.Context, viewer billing.Viewer, employee string) (*billing.Account, error) {
	acct, err := s.store.GetAccount(ctx, employee)
	if err != nil {
		return nil, errors.Wrap(err, "load employee")
	}
	if acct == nil || acct.Role != billing.RoleEmployee {
		return nil, billing.Messagef(billing.ErrNotFound, "Employee not found")
	}
	if viewer.Role == billing.RoleCompany && acct.Company != viewer.Username {
		return nil, billing.Messagef(billing.ErrForbidden, "This employee is not associated with this company")
	}
	return acct, nil
}

func (s *Service) rosterMember(ctx context.Context, st billing.AccountStore, company, employee string) (*billing.Account, error) {
	acct, err := st.GetAccount(ctx, employee)
	if err != nil {
		return nil, errors.Wrap(err, "load employee")
	}
	if acct == nil || acct.Role != billing.RoleEmployee || acct.Company != company {
		return nil, billing.Messagef(billing.ErrNotFound, "Employee not found")
	}
	return acct, nil
}
