package participant_role_enum

// 会话内成员角色，仅对群聊有意义
const (
	Admin  = "ADMIN"
	Member = "MEMBER"
)

// CanManageMembers 是否有权增删群成员
func CanManageMembers(role string) bool {
	return role == Admin
}

// IsValid 校验角色取值
func IsValid(role string) bool {
	return role == Admin || role == Member
}
