package respond

// UnreadUpdatedRespond unread_updated 事件载荷
type UnreadUpdatedRespond struct {
	ChatId      string `json:"chatId"`
	UnreadCount int    `json:"unreadCount"`
}

// GroupUpdatedRespond group_updated 事件载荷
type GroupUpdatedRespond struct {
	ChatId string `json:"chatId"`
	Action string `json:"action"`
	UserId string `json:"userId"`
}

// ErrorEventRespond error 事件载荷
type ErrorEventRespond struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
