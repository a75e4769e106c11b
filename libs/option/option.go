/*
 * Copyright 2022 The Go Authors<36625090@qq.com>. All rights reserved.
 * Use of this source code is governed by a MIT-style
 * license that can be found in the LICENSE file.
 */

package option

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"go.uber.org/zap/zapcore"
)

type Http struct {
	Path         string `long:"http.path" default:"" description:"Path for the HTTP server context" `
	Address      string `long:"http.address" default:"0.0.0.0" description:"Address for the HTTP server listening" `
	Port         int    `long:"http.port" default:"8080" description:"Port for the HTTP server listening" `
	Cors         bool   `long:"http.cors" description:"Support CORS access" `
	Access       bool   `long:"http.access" description:"Access log for HTTP server" `
	RequestLog   bool   `long:"http.requestlog" description:"Log HTTP requests" `
	IdleTimeout  int    `long:"http.idle" default:"0" description:"Timeout (in seconds) for idle connection" `
	ReadTimeout  int    `long:"http.read" default:"0" description:"Timeout (in seconds) for reading client request" `
	WriteTimeout int    `long:"http.write" default:"0" description:"Timeout (in seconds) for writing to client request, keep 0 for streaming" `
}

// Log logging settings
type Log struct {
	Path  string `long:"log.path" default:"logs" description:"Sets the path to log file"`
	Level string `long:"log.level" default:"info" description:"Sets the log level" choice:"debug" choice:"info" choice:"warn" choice:"error" `
}

// Options 服务参数选项
type Options struct {
	ConfigFile string `long:"config" description:"TOML config file for startup"`
	Profile    string `long:"profile" description:"Runtime mode" choice:"development" choice:"production" choice:"test"`
	Log        Log    `group:"log"`
	Http       Http   `group:"http"`
	Version    bool   `long:"version" short:"v" description:"Show the program version"`
}

var _parser *flags.Parser

func NewOptions() *Options {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true
	_parser = parser
	return &opts
}

func (m *Options) AddCommand(name, short string, cmd flags.Commander) {
	_parser.AddCommand(name, short, "", cmd)
}

// Parse 解析命令行, 子命令在解析成功后由 go-flags 执行
func (m *Options) Parse(args []string) error {
	_, err := _parser.ParseArgs(args)
	if nil == err {
		return nil
	}
	if flagError, ok := err.(*flags.Error); ok {
		if flagError.Type == flags.ErrHelp {
			_parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
	}
	return err
}

// LoggerConfig 用命令行覆盖配置文件中的日志设置
func (m *Options) LoggerConfig(base logs.LoggerConfig) logs.LoggerConfig {
	if base.Filename == "" && m.Log.Path != "" {
		base.Filename = filepath.Join(m.Log.Path, "app.log")
	}
	if base.MaxSize == 0 {
		base.MaxSize = 60
	}
	if base.MaxBackups == 0 {
		base.MaxBackups = 5
	}
	if base.MaxAge == 0 {
		base.MaxAge = 7
	}
	if m.Log.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(m.Log.Level)); err == nil {
			base.Level = int(lvl)
		}
	}
	return base
}
