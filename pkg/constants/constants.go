package constants

import "time"

const (
	CHANNEL_SIZE          = 100     // 每个连接发送缓冲、广播通道大小
	MESSAGE_MAX_LENGTH    = 5000    // 文本消息最大字符数
	GROUP_NAME_MAX_LENGTH = 100     // 群名最大字符数
	GROUP_MIN_MEMBERS     = 3       // 建群时的最少成员数（含创建者）
	DEFAULT_PAGE          = 1       // 历史消息默认页码
	DEFAULT_PER_PAGE      = 50      // 历史消息默认每页条数
	MAX_PER_PAGE          = 100     // 历史消息每页上限
	MB                    = 1 << 20 // 1 MiB
	REDIS_TIMEOUT         = 1       // redis 缓存默认有效期 (分钟)

	USER_DIRECTORY_CACHE_KEY = "chat_user_directory" // 活跃用户目录缓存键
	REDIS_FANOUT_CHANNEL     = "chat:fanout"         // redis 分发频道

	IMAGE_FOLDER = "chat-images" // 图片附件目录
	FILE_FOLDER  = "chat-files"  // 普通附件目录
)

// websocket 保活参数
const (
	WS_WRITE_WAIT  = 10 * time.Second
	WS_PONG_WAIT   = 60 * time.Second
	WS_PING_PERIOD = WS_PONG_WAIT * 9 / 10
	WS_MAX_MESSAGE = 64 * 1024
)
