package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoOwO/groupbuy-bot/internal/app"
	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/config"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/action"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/dialog"
	"github.com/lekoOwO/groupbuy-bot/internal/sticker"
)

// fakeStore is a minimal in-memory store.Store for exercising the
// HTTP layer independently of the real sqlstore.
type fakeStore struct {
	sessions map[string]*groupbuy.Session
	orders   map[string][]*groupbuy.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*groupbuy.Session), orders: make(map[string][]*groupbuy.Order)}
}

func (f *fakeStore) CreateSession(ctx context.Context, sess *groupbuy.Session) error {
	f.sessions[sess.ID] = sess
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*groupbuy.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, groupbuy.NotFoundError("揪團不存在")
	}
	clone := *sess
	return &clone, nil
}

func (f *fakeStore) UpdateItems(ctx context.Context, id string, items map[string]decimal.Decimal, expectedVersion int, actorID, actorUsername string) error {
	sess, ok := f.sessions[id]
	if !ok {
		return groupbuy.NotFoundError("揪團不存在")
	}
	if sess.Version != expectedVersion {
		return groupbuy.VersionConflictError()
	}
	sess.Items = items
	sess.Version++
	return nil
}

func (f *fakeStore) UpdatePostID(ctx context.Context, id, postID string) error {
	sess, ok := f.sessions[id]
	if !ok {
		return groupbuy.NotFoundError("揪團不存在")
	}
	sess.PostID = &postID
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status groupbuy.Status, expectedVersion int, actorID, actorUsername string) error {
	sess, ok := f.sessions[id]
	if !ok {
		return groupbuy.NotFoundError("揪團不存在")
	}
	if sess.Version != expectedVersion {
		return groupbuy.VersionConflictError()
	}
	sess.Status = status
	sess.Version++
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order *groupbuy.Order) error {
	f.orders[order.SessionID] = append(f.orders[order.SessionID], order)
	return nil
}

func (f *fakeStore) GetOrdersBySession(ctx context.Context, sessionID string) ([]*groupbuy.Order, error) {
	return f.orders[sessionID], nil
}

func (f *fakeStore) GetBuyerOrders(ctx context.Context, sessionID, buyerID string) ([]*groupbuy.Order, error) {
	var out []*groupbuy.Order
	for _, o := range f.orders[sessionID] {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteBuyerItemOrders(ctx context.Context, sessionID, buyerID, itemName, actorID, actorUsername string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) DeleteOrdersForBuyer(ctx context.Context, sessionID, buyerID, actorID, actorUsername string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) AdjustSingleOrder(ctx context.Context, orderID string, newQuantity int, adjusterID, adjusterUsername string) error {
	return nil
}

func (f *fakeStore) AdjustOrdersBatch(ctx context.Context, sessionID, itemName string, adjustments map[string]int, adjusterID, adjusterUsername string) ([]groupbuy.AdjustmentRecord, error) {
	return nil, nil
}

func (f *fakeStore) LogAction(ctx context.Context, sessionID, userID, username, act, detailsJSON string) error {
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestState(t *testing.T, chatURL string) (*app.State, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	chat := chatplatform.New(chatURL, "test-token")
	orch := &dialog.Orchestrator{
		Store:           fs,
		Chat:            chat,
		Signer:          groupbuy.NewSigner([]byte("test-signing-key")),
		CallbackBaseURL: "https://bot.example.com",
	}
	router := &action.Router{Store: fs, Dialog: orch, CallbackBaseURL: "https://bot.example.com"}

	cfg := &config.Config{}
	cfg.ChatPlatform.SlashCommandToken = "slash-secret"
	cfg.ChatPlatform.BotCallbackURL = "https://bot.example.com"
	cfg.ChatPlatform.URL = chatURL

	state := &app.State{Config: cfg, Store: fs, Chat: chat, Dialog: orch, Action: router}
	idx, err := sticker.LoadFromConfig(config.StickersConfig{})
	require.NoError(t, err)
	state.SetStickers(idx)

	return state, fs
}

func TestHandleHealth(t *testing.T) {
	state, _ := newTestState(t, "http://unused")
	srv := httptest.NewServer(NewServer("", state).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleSlashCommand_RejectsBadToken(t *testing.T) {
	state, _ := newTestState(t, "http://unused")
	srv := httptest.NewServer(NewServer("", state).Handler)
	defer srv.Close()

	form := url.Values{"token": {"wrong"}, "user_id": {"u1"}, "trigger_id": {"trig-1"}}
	resp, err := http.PostForm(srv.URL+"/commands/group_buy", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleSlashCommand_OpensDialogOnValidToken(t *testing.T) {
	var capturedPath string
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer platform.Close()

	state, _ := newTestState(t, platform.URL)
	srv := httptest.NewServer(NewServer("", state).Handler)
	defer srv.Close()

	form := url.Values{
		"token":      {"slash-secret"},
		"user_id":    {"u1"},
		"user_name":  {"alice"},
		"channel_id": {"chan-1"},
		"trigger_id": {"trig-1"},
	}
	resp, err := http.PostForm(srv.URL+"/commands/group_buy", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/v4/actions/dialogs/open", capturedPath)
}

func TestHandleDialogSubmission_UnknownFlow(t *testing.T) {
	state, _ := newTestState(t, "http://unused")
	srv := httptest.NewServer(NewServer("", state).Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/group_buy/dialog/teleport", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleStickerCommand_NoResults(t *testing.T) {
	state, _ := newTestState(t, "http://unused")
	srv := httptest.NewServer(NewServer("", state).Handler)
	defer srv.Close()

	form := url.Values{"text": {"找不到的東西"}}
	resp, err := http.PostForm(srv.URL+"/commands/sticker", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleStickerAction_UnknownAction(t *testing.T) {
	state, _ := newTestState(t, "http://unused")
	srv := httptest.NewServer(NewServer("", state).Handler)
	defer srv.Close()

	body := `{"user_id":"u1","context":{"action":"teleport"}}`
	resp, err := http.Post(srv.URL+"/action", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleAction_UnknownAction(t *testing.T) {
	state, fs := newTestState(t, "http://unused")
	fs.sessions["sess-1"] = &groupbuy.Session{ID: "sess-1", CreatorID: "organizer", Status: groupbuy.StatusActive, Version: 1}
	srv := httptest.NewServer(NewServer("", state).Handler)
	defer srv.Close()

	body := `{"user_id":"organizer","context":{"group_buy_id":"sess-1","action":"teleport"}}`
	resp, err := http.Post(srv.URL+"/api/v1/group_buy/action/teleport", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
