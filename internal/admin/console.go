// Package admin implements the bot's Direct Message console: a tiny
// text-command interface (help/ping/status/reload/sticker) reachable
// only by configured admin user ids, delivered over
// internal/chatplatform/stream's WebSocket feed. Ported from
// websocket.rs's handle_posted_event and its command match arm.
package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/sticker"
)

// ReloadFunc re-reads configuration from disk and rebuilds the sticker
// index, returning the fresh admin id list alongside it so Console can
// swap both atomically.
type ReloadFunc func() (stickers *sticker.Index, adminUserIDs []string, err error)

// Console answers admin commands received as Direct Messages.
type Console struct {
	mu       sync.RWMutex
	adminIDs map[string]struct{}
	stickers *sticker.Index

	Chat   *chatplatform.Client
	Reload ReloadFunc
}

// New builds a Console with the configured admin id set and the
// sticker index loaded at startup.
func New(chat *chatplatform.Client, adminUserIDs []string, stickers *sticker.Index, reload ReloadFunc) *Console {
	c := &Console{
		adminIDs: make(map[string]struct{}, len(adminUserIDs)),
		stickers: stickers,
		Chat:     chat,
		Reload:   reload,
	}
	for _, id := range adminUserIDs {
		c.adminIDs[id] = struct{}{}
	}
	return c
}

// IsAdmin checks identity by user id only — never by username, which
// can be changed by its own owner.
func (c *Console) IsAdmin(userID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.adminIDs[userID]
	return ok
}

func (c *Console) adminCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.adminIDs)
}

// Handle answers one Direct Message. Non-admins receive a single
// warning post; admins get the command's response. Both paths post
// directly through Chat, matching the source's inline
// create_post calls rather than returning text for an outer layer to
// deliver.
func (c *Console) Handle(ctx context.Context, channelID, userID, message string) {
	if !c.IsAdmin(userID) {
		log.Warn().Str("user_id", userID).Msg("非管理員嘗試使用 DM")
		if err := c.Chat.CreatePost(ctx, &chatplatform.Post{
			ChannelID: channelID,
			Message:   "⚠️ 您沒有使用此功能的權限。",
		}); err != nil {
			log.Error().Err(err).Msg("發送警告訊息失敗")
		}
		return
	}

	parts := strings.Fields(message)
	command := ""
	if len(parts) > 0 {
		command = parts[0]
	}

	response := c.dispatch(command)

	if err := c.Chat.CreatePost(ctx, &chatplatform.Post{ChannelID: channelID, Message: response}); err != nil {
		log.Error().Err(err).Msg("發送回應訊息失敗")
	}
}

func (c *Console) dispatch(command string) string {
	switch command {
	case "", "help", "幫助", "?":
		return helpMessage
	case "ping":
		return "🏓 Pong!"
	case "status", "狀態":
		return c.statusMessage()
	case "reload":
		return c.reloadMessage()
	case "sticker", "stickers", "貼圖":
		return c.stickerStatsMessage()
	default:
		return fmt.Sprintf("❓ 未知指令: `%s`\n\n輸入 `help` 查看可用指令。", command)
	}
}

const helpMessage = `### 🤖 Bot 管理指令

#### 可用指令：

- **` + "`help`" + `** / **` + "`幫助`" + `** / **` + "`?`" + `** - 顯示此說明訊息
- **` + "`ping`" + `** - 測試 bot 連線狀態
- **` + "`status`" + `** / **` + "`狀態`" + `** - 顯示 bot 運行狀態
- **` + "`sticker`" + `** / **` + "`stickers`" + `** / **` + "`貼圖`" + `** - 顯示貼圖庫統計資訊
- **` + "`reload`" + `** - 重新載入配置（貼圖、管理員等）

#### 提示：

- 這些指令只能由管理員在 Direct Message 中使用
- ` + "`reload`" + ` 指令會重新讀取配置檔案，但不會影響與聊天平台的連線`

func (c *Console) statusMessage() string {
	c.mu.RLock()
	count := c.stickers.Count()
	c.mu.RUnlock()
	return fmt.Sprintf(
		"### ℹ️ Bot 狀態\n\n- **貼圖數量**: %d 張\n- **管理員數量**: %d 人\n- **狀態**: 🟢 運行中",
		count, c.adminCount(),
	)
}

func (c *Console) reloadMessage() string {
	if c.Reload == nil {
		return "❌ 重新載入配置失敗: 未設定重新載入功能"
	}

	stickers, adminIDs, err := c.Reload()
	if err != nil {
		log.Error().Err(err).Msg("重新載入配置失敗")
		return fmt.Sprintf("❌ 重新載入配置失敗: %v", err)
	}

	c.mu.Lock()
	c.stickers = stickers
	c.adminIDs = make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		c.adminIDs[id] = struct{}{}
	}
	c.mu.Unlock()

	return fmt.Sprintf(
		"### ✅ 配置重新載入成功\n\n- **貼圖數量**: %d 張\n- **管理員數量**: %d 人",
		stickers.Count(), len(adminIDs),
	)
}

func (c *Console) stickerStatsMessage() string {
	c.mu.RLock()
	total := c.stickers.Count()
	stats := c.stickers.CategoryStats()
	c.mu.RUnlock()

	categories := make([]string, 0, len(stats))
	for name := range stats {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("### 📊 貼圖庫統計\n\n")
	fmt.Fprintf(&b, "**總計**: %d 張貼圖\n\n", total)
	if len(categories) == 0 {
		b.WriteString("⚠️ 目前沒有任何貼圖資料。\n")
	} else {
		b.WriteString("#### 各分類貼圖數量：\n\n")
		for _, name := range categories {
			fmt.Fprintf(&b, "- **%s**: %d 張\n", name, stats[name])
		}
	}
	return b.String()
}
