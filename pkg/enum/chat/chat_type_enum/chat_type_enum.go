package chat_type_enum

// 会话类型
const (
	OneOnOne = "ONE_ON_ONE"
	Group    = "GROUP"
)

// IsGroup 判断会话类型是否为群聊
func IsGroup(chatType string) bool {
	return chatType == Group
}
