package domain

// Role is the kind of account a person registered as.
type Role string

const (
	RoleAdmin    Role = "admin"
	RolePharmacy Role = "pharmacy"
	RoleUser     Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePharmacy, RoleUser:
		return true
	}
	return false
}

// ApprovalState is the approval gate state of an account.
type ApprovalState string

const (
	StatePending  ApprovalState = "pending"
	StateApproved ApprovalState = "approved"
)

type Account struct {
	ID           int64  `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password"`
	Role         Role   `json:"role" db:"role"`
	IsApproved   bool   `json:"is_approved" db:"is_approved"`
	CreatedAt    string `json:"created_at,omitempty" db:"created_at"`
}

// ApprovedAtCreation reports whether a new account with this role starts approved.
// Only pharmacy accounts wait for an administrator.
func ApprovedAtCreation(role Role) bool {
	return role != RolePharmacy
}

func (a Account) State() ApprovalState {
	if a.IsApproved {
		return StateApproved
	}
	return StatePending
}
