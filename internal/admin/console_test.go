package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/config"
	"github.com/lekoOwO/groupbuy-bot/internal/sticker"
)

func emptyIndex(t *testing.T) *sticker.Index {
	t.Helper()
	idx, err := sticker.LoadFromConfig(config.StickersConfig{})
	require.NoError(t, err)
	return idx
}

func newTestConsole(t *testing.T, chatURL string, reload ReloadFunc) *Console {
	t.Helper()
	chat := chatplatform.New(chatURL, "test-token")
	return New(chat, []string{"admin-1"}, emptyIndex(t), reload)
}

func capturePosts(t *testing.T) (*httptest.Server, *[]chatplatform.Post) {
	t.Helper()
	posts := &[]chatplatform.Post{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p chatplatform.Post
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		*posts = append(*posts, p)
		w.WriteHeader(http.StatusCreated)
	}))
	return srv, posts
}

func TestHandle_RejectsNonAdmin(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	c := newTestConsole(t, srv.URL, nil)
	c.Handle(context.Background(), "dm-1", "stranger", "status")

	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "沒有使用此功能的權限")
}

func TestHandle_Ping(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	c := newTestConsole(t, srv.URL, nil)
	c.Handle(context.Background(), "dm-1", "admin-1", "ping")

	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "Pong")
}

func TestHandle_EmptyMessageShowsHelp(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	c := newTestConsole(t, srv.URL, nil)
	c.Handle(context.Background(), "dm-1", "admin-1", "")

	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "可用指令")
}

func TestHandle_Status(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	c := newTestConsole(t, srv.URL, nil)
	c.Handle(context.Background(), "dm-1", "admin-1", "狀態")

	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "Bot 狀態")
	assert.Contains(t, (*posts)[0].Message, "管理員數量**: 1")
}

func TestHandle_UnknownCommand(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	c := newTestConsole(t, srv.URL, nil)
	c.Handle(context.Background(), "dm-1", "admin-1", "foobar")

	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "未知指令")
}

func TestHandle_ReloadSwapsAdminsAndStickers(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	reloaded := false
	reload := func() (*sticker.Index, []string, error) {
		reloaded = true
		return emptyIndex(t), []string{"admin-1", "admin-2"}, nil
	}

	c := newTestConsole(t, srv.URL, reload)
	c.Handle(context.Background(), "dm-1", "admin-1", "reload")

	require.True(t, reloaded)
	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "重新載入成功")
	assert.True(t, c.IsAdmin("admin-2"))
}

func TestHandle_ReloadFailurePostsError(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	reload := func() (*sticker.Index, []string, error) {
		return nil, nil, assert.AnError
	}

	c := newTestConsole(t, srv.URL, reload)
	c.Handle(context.Background(), "dm-1", "admin-1", "reload")

	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "重新載入配置失敗")
}

func TestHandle_StickerStatsEmptyIndex(t *testing.T) {
	srv, posts := capturePosts(t)
	defer srv.Close()

	c := newTestConsole(t, srv.URL, nil)
	c.Handle(context.Background(), "dm-1", "admin-1", "貼圖")

	require.Len(t, *posts, 1)
	assert.Contains(t, (*posts)[0].Message, "貼圖庫統計")
	assert.Contains(t, (*posts)[0].Message, "沒有任何貼圖資料")
}

func TestIsAdmin(t *testing.T) {
	c := newTestConsole(t, "http://unused", nil)
	assert.True(t, c.IsAdmin("admin-1"))
	assert.False(t, c.IsAdmin("someone-else"))
}
