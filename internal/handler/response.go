package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"csr_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ResponseData 统一响应结构体
type ResponseData struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// HandleSuccess 返回 200 成功响应
func HandleSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, ResponseData{Success: true, Data: data})
}

// HandleCreated 返回 201 成功响应
func HandleCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, ResponseData{Success: true, Data: data})
}

// HandleMessage 返回只带提示信息的成功响应
func HandleMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, ResponseData{Success: true, Message: msg})
}

// HandleError 通用错误处理方法
// 业务错误按错误码映射 HTTP 状态，5xx 不向客户端暴露细节
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		status := errorx.HTTPStatus(codeErr.Code)
		if status < http.StatusInternalServerError {
			c.JSON(status, ResponseData{Success: false, Message: codeErr.Msg})
			return
		}
	}

	zap.L().Error("system error",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, ResponseData{Success: false, Message: "Internal server error"})
}

// HandleParamError 处理参数绑定错误（带 validator 翻译支持）
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && Trans != nil {
		fields := RemoveTopStruct(validationErrs.Translate(Trans))
		msgs := make([]string, 0, len(fields))
		for _, msg := range fields {
			msgs = append(msgs, msg)
		}
		sort.Strings(msgs)
		c.JSON(http.StatusBadRequest, ResponseData{
			Success: false,
			Message: strings.Join(msgs, "; "),
			Errors:  fields,
		})
		return
	}

	// 非 validator 错误（如 JSON 格式错误）
	zap.L().Info("param bind error", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusBadRequest, ResponseData{Success: false, Message: "Invalid request body"})
}
