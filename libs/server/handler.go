package server

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/libs/errors"
	"github.com/stardustagi/ScriptPilot/validation"
)

type Handler[Req any, Resp any] struct {
	Path string // 路径
	Name string
	Tags []string
	Func func(echo.Context, Req, Resp) error
}

// 抽象接口
type IHandler interface {
	GetName() string
	GetTags() []string
	GetFunc() func(echo.Context) error
}

func NewHandler[Req any, Resp any](
	name string,
	tags []string,
	f func(echo.Context, Req, Resp) error,
) *Handler[Req, Resp] {
	return &Handler[Req, Resp]{
		Name: name,
		Tags: tags,
		Func: f,
	}
}

func (h *Handler[Req, Resp]) GetName() string {
	return h.Name
}

func (h *Handler[Req, Resp]) GetTags() []string {
	return h.Tags
}

// GetFunc decodes the JSON body into Req, validates it and runs Func. GET
// and HEAD requests skip the body and validate the zero Req.
func (h *Handler[Req, Resp]) GetFunc() func(echo.Context) error {
	return func(c echo.Context) error {
		var req Req
		var resp Resp
		// 绑定
		switch c.Request().Method {
		case http.MethodGet, http.MethodHead:
			if err := c.Validate(&req); err != nil {
				return err
			}
		default:
			raw, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return errors.Wrap(err, errors.CodeValidation, http.StatusBadRequest, "Invalid input")
			}
			if req, err = validation.Decode[Req](raw); err != nil {
				return err
			}
		}
		// 执行体
		return h.Func(c, req, resp)
	}
}

// 句柄管理器抽象接口
type IHandlers interface {
	GetHandlers() []IHandler
	AddHandlers(handler IHandler)
	GetHandlersLen() int
}

// 句柄管理器
type Handlers struct {
	handlers []IHandler
}

func NewHandlers() IHandlers {
	return &Handlers{
		handlers: make([]IHandler, 0),
	}
}

func (h *Handlers) GetHandlers() []IHandler {
	return h.handlers
}

func (h *Handlers) AddHandlers(handler IHandler) {
	h.handlers = append(h.handlers, handler)
}

func (h *Handlers) GetHandlersLen() int {
	return len(h.handlers)
}

type StarDustGroup struct {
	Prefix string
	Group  *echo.Group
}

func NewStarDustGroup(prefix string, group *echo.Group) *StarDustGroup {
	return &StarDustGroup{
		Prefix: prefix,
		Group:  group,
	}
}
