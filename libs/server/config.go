package server

import (
	"time"

	"github.com/stardustagi/ScriptPilot/libs/option"
)

type HttpServerConfig struct {
	Port         int           `json:"port" toml:"port"`                   // HTTP服务器端口
	Address      string        `json:"address" toml:"address"`             // HTTP服务器主机名
	Path         string        `json:"path" toml:"path"`                   // HTTP服务器路径
	Cors         bool          `json:"cors" toml:"cors"`                   // 是否启用CORS
	RequestLog   bool          `json:"request_log" toml:"request_log"`     // 是否启用请求日志
	Access       bool          `json:"access" toml:"access"`               // 是否启用访问日志
	BodyLimit    string        `json:"body_limit" toml:"body_limit"`       // 请求体上限, 例如 1M
	IdleTimeout  time.Duration `json:"idle_timeout" toml:"idle_timeout"`   // 空闲连接超时
	ReadTimeout  time.Duration `json:"read_timeout" toml:"read_timeout"`   // 读请求超时
	WriteTimeout time.Duration `json:"write_timeout" toml:"write_timeout"` // 写响应超时, 流式接口保持 0
}

// ConfigFromOptions 命令行参数转换为服务器配置
func ConfigFromOptions(opts *option.Options) HttpServerConfig {
	return HttpServerConfig{
		Port:         opts.Http.Port,
		Address:      opts.Http.Address,
		Path:         opts.Http.Path,
		Cors:         opts.Http.Cors,
		RequestLog:   opts.Http.RequestLog,
		Access:       opts.Http.Access,
		BodyLimit:    "1M",
		IdleTimeout:  time.Duration(opts.Http.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(opts.Http.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(opts.Http.WriteTimeout) * time.Second,
	}
}
