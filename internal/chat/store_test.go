package chat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_chat_mini/internal/models"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	session := NewSession(Options{})
	require.NoError(t, session.SetSystemRole("be brief"))
	seed(session, user("hi"))
	session.SetStick(true)
	require.NoError(t, session.Persist(store))

	restored := NewSession(Options{})
	restored.Restore(store)

	assert.Equal(t, session.Snapshot(), restored.Snapshot())
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, restored.Messages())
	assert.Equal(t, "be brief", restored.SystemRole())
	assert.True(t, restored.Stick())
}

func TestFileStore_StickOff(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SaveStick(true))
	stick, err := store.LoadStick()
	require.NoError(t, err)
	assert.True(t, stick)

	require.NoError(t, store.SaveStick(false))
	_, err = os.Stat(filepath.Join(store.Dir, stickFile))
	assert.True(t, os.IsNotExist(err))

	// 重复关闭不报错
	assert.NoError(t, store.SaveStick(false))
}

func TestRestore_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte("{not json"), 0o600))
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	session := NewSession(Options{SystemRole: "default"})
	session.Restore(store)

	assert.Empty(t, session.Messages())
	assert.Equal(t, "default", session.SystemRole())
	assert.False(t, session.Stick())
}

func TestRestore_NoSnapshot(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	snap, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, snap)

	session := NewSession(Options{})
	session.Restore(store)
	assert.Empty(t, session.Messages())
}

func TestRestore_DropsUnknownRoles(t *testing.T) {
	dir := t.TempDir()
	data := `{"messages":[{"role":"user","content":"hi"},{"role":"tool","content":"x"},{"role":"assistant","content":"yo"}],"systemRoleSettings":"sys"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte(data), 0o600))

	session := NewSession(Options{})
	session.Restore(&FileStore{Dir: dir})

	assert.Equal(t, []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "yo"},
	}, session.Messages())
	assert.Equal(t, "sys", session.SystemRole())
}

func TestRestore_SystemRolePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		initial  string
		snapshot string
		want     string
	}{
		{
			name:     "恢复出历史时使用快照中的角色",
			initial:  "flag-role",
			snapshot: `{"messages":[{"role":"user","content":"hi"}],"systemRoleSettings":"saved-role"}`,
			want:     "saved-role",
		},
		{
			name:     "恢复出历史且快照无角色",
			initial:  "flag-role",
			snapshot: `{"messages":[{"role":"user","content":"hi"}],"systemRoleSettings":""}`,
			want:     "",
		},
		{
			name:     "历史为空时启动参数优先",
			initial:  "flag-role",
			snapshot: `{"messages":[],"systemRoleSettings":"saved-role"}`,
			want:     "flag-role",
		},
		{
			name:     "历史为空且没有启动参数",
			initial:  "",
			snapshot: `{"messages":[],"systemRoleSettings":"saved-role"}`,
			want:     "saved-role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte(tt.snapshot), 0o600))

			session := NewSession(Options{SystemRole: tt.initial})
			session.Restore(&FileStore{Dir: dir})

			assert.Equal(t, tt.want, session.SystemRole())
			if len(session.Messages()) > 0 {
				assert.ErrorIs(t, session.SetSystemRole("other"), ErrHistoryNotEmpty)
			}
		})
	}
}
