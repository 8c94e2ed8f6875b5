// 终端聊天客户端，连接 ai_chat_mini 服务端
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ai_chat_mini/internal/chat"
	"ai_chat_mini/internal/clients/generate"
)

type options struct {
	server      string
	pass        string
	secret      string
	temperature float64
	maxHistory  int
	stateDir    string
	system      string
	transport   string
	touch       bool
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagEnv 可由环境变量提供的参数
var flagEnv = map[string]string{
	"server":      "CHAT_SERVER",
	"pass":        "SITE_PASSWORD",
	"secret":      "SECRET_KEY",
	"max-history": "PUBLIC_MAX_HISTORY_MESSAGES",
	"transport":   "CHAT_TRANSPORT",
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "与 ai_chat_mini 服务端进行流式对话",
		Long: `交互式终端客户端。

命令：
  /retry          重新生成最后一条回复
  /clear          清空对话
  /stick          切换自动置底
  /system <文本>   设置系统角色（仅在对话开始前）
  /history        显示对话历史
  /quit           退出

生成过程中按 Ctrl-C 停止当前回复。`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}

	defineFlags(cmd.Flags())
	if err := bindOptions(v, cmd.Flags()); err != nil {
		log.Fatalf("%v", err)
	}

	return cmd
}

func defineFlags(flags *pflag.FlagSet) {
	flags.String("server", "http://localhost:3000", "服务端地址")
	flags.String("pass", "", "站点密码")
	flags.String("secret", "", "请求签名密钥")
	flags.Float64("temperature", 0.6, "温度，取值0到1")
	flags.Int("max-history", chat.DefaultMaxHistory, "每次请求携带的最大历史消息数")
	flags.String("state-dir", defaultStateDir(), "会话保存目录")
	flags.String("system", "", "系统角色")
	flags.String("transport", generate.TransportHTTP, "传输方式：http 或 ws")
	flags.Bool("touch", false, "结束后不请求输入焦点")
}

// bindOptions 命令行参数优先，其次是环境变量，最后是参数默认值
func bindOptions(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("绑定命令行参数失败: %w", err)
	}
	for key, env := range flagEnv {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("绑定环境变量%s失败: %w", env, err)
		}
	}
	return nil
}

// resolveOptions 从viper读取生效的参数
func resolveOptions(v *viper.Viper) (*options, error) {
	opts := &options{
		server:      v.GetString("server"),
		pass:        v.GetString("pass"),
		secret:      v.GetString("secret"),
		temperature: v.GetFloat64("temperature"),
		maxHistory:  v.GetInt("max-history"),
		stateDir:    v.GetString("state-dir"),
		system:      v.GetString("system"),
		transport:   v.GetString("transport"),
		touch:       v.GetBool("touch"),
	}
	if opts.maxHistory <= 0 {
		return nil, fmt.Errorf("最大历史消息数必须大于0: %d", opts.maxHistory)
	}
	return opts, nil
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ai_chat_mini")
}
