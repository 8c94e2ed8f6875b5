package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"ai_chat_mini/internal/models"
)

// 存储文件名
const (
	snapshotFile = "session.json"
	stickFile    = "stick_to_bottom"
)

// Snapshot 会话快照
type Snapshot struct {
	Messages           []models.ChatMessage `json:"messages"`
	SystemRoleSettings string               `json:"systemRoleSettings"`
}

// Store 会话持久化
type Store interface {
	// LoadSnapshot 读取快照，没有快照时返回 nil, nil
	LoadSnapshot() (*Snapshot, error)
	SaveSnapshot(snap Snapshot) error
	LoadStick() (bool, error)
	SaveStick(stick bool) error
}

// FileStore 把快照和置底偏好保存在目录下的两个文件中
type FileStore struct {
	Dir string
}

// NewFileStore 创建文件存储，目录不存在时创建
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

// LoadSnapshot 读取会话快照
func (s *FileStore) LoadSnapshot() (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, snapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话快照失败: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("解析会话快照失败: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot 写入会话快照，先写临时文件再重命名
func (s *FileStore) SaveSnapshot(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化会话快照失败: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.Dir, snapshotFile), data)
}

// LoadStick 读取置底偏好，文件不存在时为false
func (s *FileStore) LoadStick() (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, stickFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取置底设置失败: %w", err)
	}
	return strings.TrimSpace(string(data)) == "stick", nil
}

// SaveStick 保存置底偏好，关闭时删除文件
func (s *FileStore) SaveStick(stick bool) error {
	path := filepath.Join(s.Dir, stickFile)
	if !stick {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("删除置底设置失败: %w", err)
		}
		return nil
	}
	return writeFileAtomic(path, []byte("stick"))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("重命名文件失败: %w", err)
	}
	return nil
}

// Snapshot 返回当前会话快照，进行中的文本不包含在内
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Messages:           append([]models.ChatMessage(nil), s.messages...),
		SystemRoleSettings: s.systemRole,
	}
}

// Restore 从存储恢复会话。读取失败时记录日志并保留默认值。
// 应在开始对话前调用。
func (s *Session) Restore(store Store) {
	snap, err := store.LoadSnapshot()
	if err != nil {
		log.Printf("恢复会话失败: %v", err)
	}

	stick, err := store.LoadStick()
	if err != nil {
		log.Printf("读取置底设置失败: %v", err)
	}

	s.mu.Lock()
	if snap != nil {
		s.messages = validMessages(snap.Messages)
		// 系统角色只能在历史为空时修改：恢复出历史时沿用快照里的角色，
		// 否则启动时指定的角色优先
		if len(s.messages) > 0 || s.systemRole == "" {
			s.systemRole = snap.SystemRoleSettings
		}
	}
	if stick {
		s.stick = true
	}
	s.mu.Unlock()

	s.notify(Event{Type: EventMessages})
}

// validMessages 丢弃角色未知的消息
func validMessages(messages []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role.Valid() && m.Role != models.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// Persist 保存会话快照和置底偏好
func (s *Session) Persist(store Store) error {
	if err := store.SaveSnapshot(s.Snapshot()); err != nil {
		return err
	}
	return store.SaveStick(s.Stick())
}
