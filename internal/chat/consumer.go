package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"

	"ai_chat_mini/internal/auth"
	"ai_chat_mini/internal/clients/generate"
	"ai_chat_mini/internal/models"
)

// DefaultMaxHistory 每次请求携带的最大历史消息数
const DefaultMaxHistory = 9

// Streamer 补全接口客户端
type Streamer interface {
	Stream(ctx context.Context, req models.GenerateRequest) (io.ReadCloser, error)
}

// ConsumerConfig 请求参数
type ConsumerConfig struct {
	Secret     string // 签名共享密钥
	Password   string // 站点密码
	MaxHistory int    // 为0时使用 DefaultMaxHistory
}

// Consumer 发起补全请求并把响应流写入会话
type Consumer struct {
	session   *Session
	client    Streamer
	config    ConsumerConfig
	now       func() time.Time
	chunkSize int
}

// NewConsumer 创建消费者
func NewConsumer(session *Session, client Streamer, config ConsumerConfig) *Consumer {
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultMaxHistory
	}
	return &Consumer{
		session:   session,
		client:    client,
		config:    config,
		now:       time.Now,
		chunkSize: 4 << 10,
	}
}

// Submit 追加用户消息并发起请求，直到流结束、被Stop取消或失败才返回。
// 空白输入直接忽略。被Stop取消时返回nil。
func (c *Consumer) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.request(ctx, appendUser(text))
}

// Retry 删除末尾的助手消息后重新请求，历史为空时什么也不做
func (c *Consumer) Retry(ctx context.Context) error {
	return c.request(ctx, dropLastAssistant)
}

// Stop 取消进行中的请求，已收到的文本归档为助手消息
func (c *Consumer) Stop() bool {
	return c.session.abort()
}

// BuildRequest 构建请求体：截取最近的历史，有系统角色时放在最前，并对最后一条消息签名
func (c *Consumer) BuildRequest(messages []models.ChatMessage, systemRole string, temperature float64) models.GenerateRequest {
	if len(messages) > c.config.MaxHistory {
		messages = messages[len(messages)-c.config.MaxHistory:]
	}

	list := make([]models.ChatMessage, 0, len(messages)+1)
	if systemRole != "" {
		list = append(list, models.ChatMessage{Role: models.RoleSystem, Content: systemRole})
	}
	list = append(list, messages...)

	ts := c.now().UnixMilli()
	t := temperature
	return models.GenerateRequest{
		Messages:    list,
		Time:        ts,
		Pass:        c.config.Password,
		Sign:        auth.Sign(c.config.Secret, auth.Payload{Timestamp: ts, LastMessageContent: models.LastContent(list)}),
		Temperature: &t,
	}
}

// request 修改历史后发起一次请求并消费响应流
func (c *Consumer) request(parent context.Context, prepare prepareFunc) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	stream, state, err := c.session.begin(cancel, prepare)
	if err != nil {
		return err
	}
	if stream == nil {
		return nil
	}

	req := c.BuildRequest(state.messages, state.systemRole, state.temperature)
	body, err := c.client.Stream(ctx, req)
	if err != nil {
		var apiErr *generate.APIError
		if errors.As(err, &apiErr) {
			log.Printf("请求失败: %v", apiErr)
			c.session.fail(stream.ID, &apiErr.ErrorMessage)
			return err
		}
		if !c.session.fail(stream.ID, nil) {
			// 已被Stop取消
			return nil
		}
		log.Printf("请求失败: %v", err)
		return err
	}
	defer body.Close()

	if !c.session.streaming(stream.ID) {
		return nil
	}

	// 增量UTF-8解码，跨片段的多字节字符会等到完整后再输出
	reader := unicode.UTF8.NewDecoder().Reader(body)
	buf := make([]byte, c.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			if !c.session.fail(stream.ID, nil) {
				return nil
			}
			return err
		}

		n, rerr := reader.Read(buf)
		if n > 0 {
			c.session.appendPartial(stream.ID, string(buf[:n]))
		}

		switch {
		case rerr == nil:
			continue
		case errors.Is(rerr, io.EOF):
			c.session.finalize(stream.ID)
			return nil
		default:
			if !c.session.fail(stream.ID, nil) {
				return nil
			}
			log.Printf("读取响应流失败: %v", rerr)
			return rerr
		}
	}
}

// isDuplicateNewline 已有文本以换行结尾时，单独的换行片段被丢弃
func isDuplicateNewline(current, chunk string) bool {
	return chunk == "\n" && strings.HasSuffix(current, "\n")
}
