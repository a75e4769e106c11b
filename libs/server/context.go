package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/utils"
)

// RequestIDKey 请求 ID 在 echo.Context 中的键
const RequestIDKey = "request_id"

type Context struct {
	echo.Context
	// ClientId 限流使用的客户端标识
	ClientId  string
	RequestId string
	Header    http.Header
}

func NewContext(c echo.Context) *Context {
	requestId, _ := c.Get(RequestIDKey).(string)
	return &Context{
		Context:   c,
		ClientId:  utils.GetRemoteAddr(c.Request()),
		RequestId: requestId,
		Header:    c.Request().Header,
	}
}
