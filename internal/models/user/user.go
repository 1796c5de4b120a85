package user

import (
	"fmt"
	"strings"
)

// Role is the role string the tender API assigns. The employee role is
// spelled "emp" on the wire.
type Role string

const (
	RoleNone     Role = ""
	RoleUser     Role = "user"
	RoleEmployee Role = "emp"
	RoleAdmin    Role = "admin"
)

func (r Role) String() string {
	switch r {
	case RoleEmployee:
		return "employee"
	case RoleNone:
		return "anonymous"
	default:
		return string(r)
	}
}

// ParseApprovalRole accepts the roles an admin can grant.
func ParseApprovalRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "emp", "employee":
		return RoleEmployee, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleNone, fmt.Errorf("role must be employee or admin, got %q", s)
}

type User struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	EmpId string `json:"empId,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

// PendingUser is a registered account awaiting an admin decision.
type PendingUser struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"required,eqfield=Password"`
	EmpId           string `json:"empId" validate:"required"`
}

type ApproveRequest struct {
	Id   string `json:"id" validate:"required"`
	Role Role   `json:"role" validate:"required,oneof=emp admin"`
}
