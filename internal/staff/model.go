package staff

import "time"

type Role string

const (
	RoleManager Role = "manager"
	RoleWaiter  Role = "waiter"
	RoleChef    Role = "chef"
	RoleCashier Role = "cashier"
)

func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleWaiter, RoleChef, RoleCashier:
		return true
	}
	return false
}

type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Shift struct {
	ID       string     `json:"id"`
	StaffID  string     `json:"staffId"`
	ClockIn  time.Time  `json:"clockIn"`
	ClockOut *time.Time `json:"clockOut,omitempty"`
}

func (s Shift) Open() bool {
	return s.ClockOut == nil
}

// Hours is the worked time in hours, measured up to now for an open shift.
func (s Shift) Hours(now time.Time) float64 {
	end := now
	if s.ClockOut != nil {
		end = *s.ClockOut
	}
	if end.Before(s.ClockIn) {
		return 0
	}
	return end.Sub(s.ClockIn).Hours()
}

type Filter struct {
	Role            Role
	IncludeInactive bool
}
