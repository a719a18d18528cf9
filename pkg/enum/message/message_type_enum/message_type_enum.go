package message_type_enum

import "strings"

// 消息类型
const (
	Text  = "TEXT"
	Image = "IMAGE"
	File  = "FILE"
)

// IsValid 校验消息类型取值
func IsValid(t string) bool {
	switch t {
	case Text, Image, File:
		return true
	}
	return false
}

// ForMIME 按附件 MIME 类型推断消息类型，图片为 IMAGE，其余为 FILE
func ForMIME(mime string) string {
	if strings.HasPrefix(mime, "image/") {
		return Image
	}
	return File
}
