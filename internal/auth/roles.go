package auth

// Role 用户角色，USER < MANAGER < ADMIN 构成全序，用于最低角色授权
type Role string

const (
	RoleUser    Role = "USER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// Level 角色等级，值越大权限越高；未知角色返回 0
func (r Role) Level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	return r.Level() > 0
}

// AtLeast 是否达到最低角色要求
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Level() >= min.Level()
}
