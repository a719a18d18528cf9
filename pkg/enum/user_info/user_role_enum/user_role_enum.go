package user_role_enum

// 系统用户角色
const (
	Admin    = "ADMIN"
	Employee = "EMPLOYEE"
)

// IsValid 校验角色取值
func IsValid(role string) bool {
	return role == Admin || role == Employee
}

