package respond

import "time"

// SenderRespond 消息发送者资料
type SenderRespond struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// MessageRespond 消息，id 以字符串返回避免前端精度丢失
type MessageRespond struct {
	Id          string        `json:"id"`
	ChatId      string        `json:"chatId"`
	SenderId    string        `json:"senderId"`
	Sender      SenderRespond `json:"sender"`
	Content     *string       `json:"content"`
	MessageType string        `json:"messageType"`
	FileUrl     *string       `json:"fileUrl"`
	FileName    *string       `json:"fileName"`
	FileSize    *int64        `json:"fileSize"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// PaginationRespond 分页信息
type PaginationRespond struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// MessagePageRespond 历史消息分页结果，items 按时间升序
type MessagePageRespond struct {
	Items      []MessageRespond  `json:"items"`
	Pagination PaginationRespond `json:"pagination"`
}

// UploadRespond 附件上传结果
type UploadRespond struct {
	FileUrl     string `json:"fileUrl"`
	FileKey     string `json:"fileKey"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	MessageType string `json:"messageType"`
}
