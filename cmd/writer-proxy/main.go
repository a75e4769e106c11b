package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stardustagi/ScriptPilot/libs/conf"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/libs/option"
	"github.com/stardustagi/ScriptPilot/libs/server"
	"github.com/stardustagi/ScriptPilot/llm/consumer"
	"github.com/stardustagi/ScriptPilot/protocol"
	"github.com/stardustagi/ScriptPilot/services"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

type app struct {
	opts *option.Options
	cfg  *conf.Config
	ran  bool
}

func (a *app) setup() error {
	a.ran = true
	cfg, err := conf.Load(a.opts.ConfigFile)
	if err != nil {
		return err
	}
	if a.opts.Profile != "" {
		cfg.Global.Mode = a.opts.Profile
	}
	logs.InitWithConfig(a.opts.LoggerConfig(cfg.Log))
	if err := cfg.Validate(); err != nil {
		logs.Error("invalid configuration", logs.ErrorInfo(err), logs.String("mode", cfg.Global.Mode))
		return err
	}
	a.cfg = cfg
	return nil
}

type serveCommand struct {
	app *app
}

func (c *serveCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(); err != nil {
		return err
	}
	srv := server.NewServer()
	svc := services.NewWriterService(a.cfg)
	if err := svc.Init(srv.Ctx); err != nil {
		return err
	}
	bk, err := server.NewBackend(server.ConfigFromOptions(a.opts))
	if err != nil {
		return err
	}
	svc.Register(bk)
	svc.Start()
	defer svc.Stop()

	go srv.HandleSignal()
	logs.Info("writer proxy starting",
		logs.String("version", version),
		logs.String("mode", a.cfg.Global.Mode),
		logs.String("backendUrl", a.cfg.Backend.URL))
	err = bk.Start(srv.Ctx)
	srv.Shutdown()
	return err
}

type modelsCommand struct {
	app *app
}

func (c *modelsCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(); err != nil {
		return err
	}
	svc := services.NewWriterService(a.cfg)
	if err := svc.Init(context.Background()); err != nil {
		return err
	}
	defer svc.Stop()
	for _, id := range svc.Gemini().ListModels(context.Background()) {
		fmt.Println(id)
	}
	return nil
}

type streamCommand struct {
	app         *app
	URL         string  `long:"url" default:"http://localhost:8080/api/writer2" description:"Streaming endpoint"`
	SSE         bool    `long:"sse" description:"Ask for SSE framing instead of raw text"`
	Model       string  `long:"model" description:"Model id, empty for the server default"`
	System      string  `long:"system" description:"System instruction"`
	Temperature float64 `long:"temperature" default:"1.0" description:"Sampling temperature 0..2"`
	MaxTokens   int     `long:"max-tokens" default:"500" description:"Maximum output tokens 1..8000"`
	Args        struct {
		Prompt []string `positional-arg-name:"prompt" required:"1"`
	} `positional-args:"yes"`
}

func (c *streamCommand) Execute([]string) error {
	c.app.ran = true
	logs.InitWithConfig(c.app.opts.LoggerConfig(logs.LoggerConfig{}))

	req := protocol.StreamRequest{ModelID: c.Model, Temperature: &c.Temperature, MaxTokens: &c.MaxTokens}
	if c.System != "" {
		req.Conversation = append(req.Conversation, protocol.ChatMessage{Role: protocol.RoleSystem, Content: c.System})
	}
	req.Conversation = append(req.Conversation, protocol.ChatMessage{
		Role:    protocol.RoleUser,
		Content: strings.Join(c.Args.Prompt, " "),
	})

	var opts []consumer.Option
	if c.SSE {
		opts = append(opts, consumer.WithEventStream())
	}
	cs := consumer.New(opts...)
	defer cs.Close()

	srv := server.NewServer()
	go srv.HandleSignal()
	defer srv.Shutdown()

	_, err := cs.Consume(srv.Ctx, c.URL, req, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	if consumer.IsCancelled(err) {
		return nil
	}
	return err
}

func main() {
	opts := option.NewOptions()
	a := &app{opts: opts}
	opts.AddCommand("serve", "Run the writing-assistant proxy (default)", &serveCommand{app: a})
	opts.AddCommand("models", "List the available Gemini models", &modelsCommand{app: a})
	opts.AddCommand("stream", "Stream a completion from a running proxy", &streamCommand{app: a})

	if err := opts.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logs.Sync()
		os.Exit(1)
	}
	if opts.Version && !a.ran {
		fmt.Println(version)
		return
	}
	if !a.ran {
		if err := (&serveCommand{app: a}).Execute(nil); err != nil {
			fmt.Fprintln(os.Stderr, err)
			logs.Sync()
			os.Exit(1)
		}
	}
	logs.Sync()
}
