package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"ai_chat_mini/internal/chat"
	"ai_chat_mini/internal/clients/generate"
	"ai_chat_mini/internal/models"
)

var (
	userColor      = color.New(color.FgGreen, color.Bold)
	assistantColor = color.New(color.FgCyan)
	errorColor     = color.New(color.FgRed, color.Bold)
	infoColor      = color.New(color.FgYellow)
)

// command 斜杠命令
type command struct {
	name string
	arg  string
}

// parseCommand 解析以 / 开头的输入
func parseCommand(input string) (command, bool) {
	if !strings.HasPrefix(input, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

func run(ctx context.Context, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.transport != generate.TransportHTTP && opts.transport != generate.TransportWS {
		return fmt.Errorf("未知的传输方式: %s", opts.transport)
	}
	if opts.temperature < 0 || opts.temperature > 1 {
		return fmt.Errorf("温度必须在0到1之间: %v", opts.temperature)
	}

	store, err := chat.NewFileStore(opts.stateDir)
	if err != nil {
		return err
	}

	session := chat.NewSession(chat.Options{
		SystemRole:  opts.system,
		Temperature: opts.temperature,
		Touch:       opts.touch,
	})
	session.Restore(store)
	defer func() {
		if err := session.Persist(store); err != nil {
			errorColor.Fprintf(os.Stderr, "保存会话失败: %v\n", err)
		}
	}()

	client := generate.NewClient(generate.Config{BaseURL: opts.server, Transport: opts.transport})
	consumer := chat.NewConsumer(session, client, chat.ConsumerConfig{
		Secret:     opts.secret,
		Password:   opts.pass,
		MaxHistory: opts.maxHistory,
	})

	unsubscribe := session.Subscribe(render(session))
	defer unsubscribe()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	// 生成过程中 Ctrl-C 只停止当前回复
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if consumer.Stop() {
				infoColor.Println("\n[已停止]")
			}
		}
	}()

	printHistory(session)

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("读取输入失败: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if cmd, ok := parseCommand(input); ok {
			if quit := handleCommand(ctx, cmd, session, consumer); quit {
				return nil
			}
			continue
		}

		if err := consumer.Submit(ctx, input); err != nil {
			reportError(session, err)
		}
	}
}

// handleCommand 执行斜杠命令，返回是否退出
func handleCommand(ctx context.Context, cmd command, session *chat.Session, consumer *chat.Consumer) bool {
	switch cmd.name {
	case "quit", "exit", "q":
		return true
	case "retry":
		if err := consumer.Retry(ctx); err != nil {
			reportError(session, err)
		}
	case "clear":
		session.Clear()
		infoColor.Println("对话已清空")
	case "stick":
		session.SetStick(!session.Stick())
		infoColor.Printf("自动置底: %v\n", session.Stick())
	case "system":
		if err := session.SetSystemRole(cmd.arg); err != nil {
			errorColor.Println(err)
			return false
		}
		infoColor.Printf("系统角色: %s\n", session.SystemRole())
	case "history":
		printHistory(session)
	default:
		errorColor.Printf("未知命令: /%s\n", cmd.name)
	}
	return false
}

// render 把会话事件输出到终端
func render(session *chat.Session) func(chat.Event) {
	return func(e chat.Event) {
		switch e.Type {
		case chat.EventPartial:
			if e.Text != "" {
				assistantColor.Print(e.Text)
			}
		case chat.EventState:
			switch e.State {
			case chat.StateFinalized, chat.StateAborted:
				fmt.Println()
			}
		case chat.EventError:
			if msg := session.Error(); msg != nil {
				errorColor.Fprintf(os.Stderr, "\n%s\n", formatError(msg))
			}
		}
	}
}

func reportError(session *chat.Session, err error) {
	// 服务端错误已经通过 EventError 输出
	var apiErr *generate.APIError
	if errors.As(err, &apiErr) {
		return
	}
	if errors.Is(err, chat.ErrStreamActive) {
		errorColor.Println(err)
		return
	}
	errorColor.Fprintf(os.Stderr, "\n连接中断: %v\n", err)
}

func formatError(msg *models.ErrorMessage) string {
	if msg.Code != "" {
		return fmt.Sprintf("[%s] %s", msg.Code, msg.Message)
	}
	return msg.Message
}

func printHistory(session *chat.Session) {
	if role := session.SystemRole(); role != "" {
		infoColor.Printf("系统角色: %s\n", role)
	}
	for _, m := range session.Messages() {
		switch m.Role {
		case models.RoleUser:
			userColor.Print("> ")
			fmt.Println(m.Content)
		case models.RoleAssistant:
			assistantColor.Println(m.Content)
		}
	}
}
