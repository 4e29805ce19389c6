// Package app wires together every long-lived component the bot
// needs — persistence, the chat platform client, the dialog
// orchestrator, the action router, the DM admin console, and the
// inbound WebSocket stream — into one State the HTTP and WebSocket
// layers share. Grounded on cmd/polybot/main.go's component-by-
// component construction rather than the source's single
// Arc<RwLock<AppState>> (app.rs there is unrelated Apps-framework
// scaffolding, not the state struct); reload re-reads config and
// rebuilds the sticker index under State's own lock instead of behind
// a second Arc<RwLock<_>> layer, while admin.Console swaps its admin
// allow-list under its own lock.
// Stickers()/SetStickers() give internal/httpapi the same reloadable
// index admin.Console already holds its own copy of.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/lekoOwO/groupbuy-bot/internal/admin"
	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform/stream"
	"github.com/lekoOwO/groupbuy-bot/internal/config"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/action"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/dialog"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/store"
	"github.com/lekoOwO/groupbuy-bot/internal/sticker"
)

// State holds every component a request handler needs. All fields are
// safe for concurrent use by their own design (Store, Chat, Dialog,
// Action, Admin, Stream each own their own locking); State's only lock
// is stickersMu, which guards the reloadable sticker index.
type State struct {
	Config *config.Config
	Store  store.Store
	Chat   *chatplatform.Client
	Dialog *dialog.Orchestrator
	Action *action.Router
	Admin  *admin.Console
	Stream *stream.Client

	configPath string
	stickersMu sync.RWMutex
	stickers   *sticker.Index
}

// Stickers returns the currently loaded sticker index. Safe to call
// concurrently with a reload.
func (s *State) Stickers() *sticker.Index {
	s.stickersMu.RLock()
	defer s.stickersMu.RUnlock()
	return s.stickers
}

// SetStickers replaces the sticker index directly, bypassing New's
// config-driven load — used by tests to wire a State without a real
// config file.
func (s *State) SetStickers(idx *sticker.Index) {
	s.stickersMu.Lock()
	s.stickers = idx
	s.stickersMu.Unlock()
}

// New builds a State from cfg, opening the store and constructing the
// chat client, dialog orchestrator, action router, admin console, and
// WebSocket stream client. configPath is retained only so Console's
// reload command can re-read it later.
func New(cfg *config.Config, configPath string) (*State, error) {
	st, err := store.Open(store.Driver(cfg.Database.Driver), cfg.Database.DSN, cfg.Database.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("無法開啟資料庫: %w", err)
	}

	chat := chatplatform.New(cfg.ChatPlatform.URL, cfg.ChatPlatform.BotToken)

	stickers, err := sticker.LoadFromConfig(cfg.Stickers)
	if err != nil {
		return nil, fmt.Errorf("無法載入貼圖庫: %w", err)
	}

	signer := groupbuy.NewSigner([]byte(cfg.Dialog.StateSecret))

	dlg := &dialog.Orchestrator{
		Store:           st,
		Chat:            chat,
		Signer:          signer,
		CallbackBaseURL: cfg.ChatPlatform.BotCallbackURL,
	}

	router := &action.Router{
		Store:           st,
		Dialog:          dlg,
		CallbackBaseURL: cfg.ChatPlatform.BotCallbackURL,
	}

	state := &State{
		Config:     cfg,
		Store:      st,
		Chat:       chat,
		Dialog:     dlg,
		Action:     router,
		configPath: configPath,
		stickers:   stickers,
	}

	botUser, err := chat.GetSelf(context.Background())
	if err != nil {
		return nil, fmt.Errorf("無法取得機器人身分: %w", err)
	}

	state.Admin = admin.New(chat, cfg.Admin.UserIDs, stickers, state.reload)
	state.Stream = stream.New(cfg.ChatPlatform.URL, cfg.ChatPlatform.BotToken, botUser.ID)
	state.Stream.Handler = func(dm stream.DirectMessage) {
		state.Admin.Handle(context.Background(), dm.ChannelID, dm.UserID, dm.Message)
	}

	return state, nil
}

// reload re-reads configuration from configPath and rebuilds the
// sticker index, handed to admin.Console as its ReloadFunc. It
// deliberately never touches Store, Chat, Dialog, or Action — a
// config reload only refreshes the sticker library and the admin
// allow-list, matching handle_reload_config's own scope.
func (s *State) reload() (*sticker.Index, []string, error) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, nil, err
	}

	stickers, err := sticker.LoadFromConfig(cfg.Stickers)
	if err != nil {
		return nil, nil, err
	}

	s.stickersMu.Lock()
	s.stickers = stickers
	s.stickersMu.Unlock()

	return stickers, cfg.Admin.UserIDs, nil
}

// Close releases the store connection.
func (s *State) Close() error {
	return s.Store.Close()
}
