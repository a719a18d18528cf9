package respond

import "time"

// UserBriefRespond 用户公开资料
type UserBriefRespond struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ParticipantRespond 会话成员资料，含会话内角色与加入时间
type ParticipantRespond struct {
	Id              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	ParticipantRole string    `json:"participantRole"`
	JoinedAt        time.Time `json:"joinedAt"`
}
