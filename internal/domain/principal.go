package domain

const (
	RoleStudent = "student"
	RoleHost    = "host"
	RoleAdmin   = "admin"
)

// Principal is the caller identity taken from the bearer token.
type Principal struct {
	Subject string
	Role    string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) CanManage() bool { return p.Role == RoleHost || p.Role == RoleAdmin }
