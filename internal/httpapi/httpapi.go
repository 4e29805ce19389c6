// Package httpapi exposes the bot's inbound HTTP surface: the two
// slash commands (group_buy, sticker), the five dialog submission
// callbacks, the two interactive-action callbacks (group-buy panel
// buttons, sticker picker), and a health check. Routing follows the
// plain
// http.NewServeMux/mux.HandleFunc idiom of
// order-matching-engine/cmd/server/main.go rather than reaching for a
// router library no example in this codebase actually imports; Go
// 1.22's method+wildcard ServeMux patterns cover the one path
// parameter ({flow}, {name}) these routes need.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lekoOwO/groupbuy-bot/internal/app"
	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/render"
)

// parseSlashCommand fills a SlashCommand from an
// application/x-www-form-urlencoded POST body without a schema
// decoding library (see DESIGN.md).
func parseSlashCommand(r *http.Request) (chatplatform.SlashCommand, error) {
	if err := r.ParseForm(); err != nil {
		return chatplatform.SlashCommand{}, err
	}
	return chatplatform.SlashCommand{
		Token:       r.FormValue("token"),
		ChannelID:   r.FormValue("channel_id"),
		TeamID:      r.FormValue("team_id"),
		UserID:      r.FormValue("user_id"),
		UserName:    r.FormValue("user_name"),
		Command:     r.FormValue("command"),
		Text:        r.FormValue("text"),
		TriggerID:   r.FormValue("trigger_id"),
		ResponseURL: r.FormValue("response_url"),
	}, nil
}

// NewServer builds the *http.Server bound to addr, wired to state's
// components. ReadTimeout/WriteTimeout mirror
// order-matching-engine's server, loosened for the slower round
// trips a dialog submission or action click takes.
func NewServer(addr string, state *app.State) *http.Server {
	mux := http.NewServeMux()
	h := &handler{state: state}

	mux.HandleFunc("POST /commands/group_buy", h.handleSlashCommand)
	mux.HandleFunc("POST /commands/sticker", h.handleStickerCommand)
	mux.HandleFunc("POST /api/v1/group_buy/dialog/{flow}", h.handleDialogSubmission)
	mux.HandleFunc("POST /api/v1/group_buy/action/{name}", h.handleAction)
	mux.HandleFunc("POST /action", h.handleStickerAction)
	mux.HandleFunc("GET /health", h.handleHealth)

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type handler struct {
	state *app.State
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error().Err(err).Msg("寫入回應失敗")
		}
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSlashCommand validates the command token, then opens the
// Create dialog. The platform expects an immediate (possibly empty)
// response; the dialog itself is opened asynchronously via
// OpenDialog's own request.
func (h *handler) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := parseSlashCommand(r)
	if err != nil {
		http.Error(w, "無法解析表單", http.StatusBadRequest)
		return
	}

	if cmd.Token == "" || cmd.Token != h.state.Config.ChatPlatform.SlashCommandToken {
		writeJSON(w, http.StatusOK, &chatplatform.SlashCommandResponse{
			ResponseType: "ephemeral",
			Text:         "⚠️ 指令驗證失敗。",
		})
		return
	}

	if err := h.state.Dialog.OpenCreate(r.Context(), cmd, cmd.TriggerID); err != nil {
		log.Error().Err(err).Msg("開啟建立團購對話框失敗")
		writeJSON(w, http.StatusOK, &chatplatform.SlashCommandResponse{
			ResponseType: "ephemeral",
			Text:         "⚠️ 無法開啟團購建立表單，請稍後再試。",
		})
		return
	}

	writeJSON(w, http.StatusOK, &chatplatform.SlashCommandResponse{ResponseType: "ephemeral"})
}

// handleStickerCommand answers the /sticker slash command.
func (h *handler) handleStickerCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := parseSlashCommand(r)
	if err != nil {
		http.Error(w, "無法解析表單", http.StatusBadRequest)
		return
	}

	resp := h.state.Stickers().HandleCommand(r.Context(), cmd, h.state.Config.ChatPlatform.URL, h.state.Config.ChatPlatform.BotCallbackURL)
	writeJSON(w, http.StatusOK, resp)
}

// handleStickerAction answers a sticker picker button/select click.
// This is a separate endpoint from /api/v1/group_buy/action/{name}:
// the sticker subsystem builds its own callback URL
// (callbackBaseURL + "/action") independently of the group-buy
// panel's, and never imports internal/groupbuy/action.
func (h *handler) handleStickerAction(w http.ResponseWriter, r *http.Request) {
	var req chatplatform.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "無法解析操作內容", http.StatusBadRequest)
		return
	}

	resp := h.state.Stickers().HandleAction(r.Context(), req, h.state.Config.ChatPlatform.URL, h.state.Config.ChatPlatform.BotCallbackURL)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) renderPanel(sess *groupbuy.Session) (string, []chatplatform.Attachment) {
	return render.PanelBody(sess), render.ActionButtons(sess.ID, sess.Status, h.state.Config.ChatPlatform.BotCallbackURL)
}

// handleDialogSubmission dispatches the body to the Submit* method
// matching the {flow} path segment.
func (h *handler) handleDialogSubmission(w http.ResponseWriter, r *http.Request) {
	var sub chatplatform.DialogSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "無法解析提交內容", http.StatusBadRequest)
		return
	}

	flow := r.PathValue("flow")
	ctx := r.Context()

	var (
		resp *chatplatform.DialogSubmissionResponse
		err  error
	)

	switch flow {
	case "create":
		resp, err = h.state.Dialog.SubmitCreate(ctx, sub, h.renderPanel)
	case "edit_items":
		resp, err = h.state.Dialog.SubmitEditItems(ctx, sub)
	case "register":
		resp, err = h.state.Dialog.SubmitRegister(ctx, sub)
	case "cancel_register":
		resp, err = h.state.Dialog.SubmitCancelRegister(ctx, sub)
	case "adjust_shortage":
		resp, err = h.state.Dialog.SubmitAdjustShortage(ctx, sub)
	default:
		http.Error(w, fmt.Sprintf("未知的對話框: %s", flow), http.StatusNotFound)
		return
	}

	if err != nil {
		log.Error().Err(err).Str("flow", flow).Msg("處理對話框提交失敗")
		http.Error(w, "處理提交時發生錯誤", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleAction decodes a button-click payload and dispatches through
// the action router. The {name} path segment is informational only —
// the actual action to perform travels inside the request's context
// map, matching action.Router.Handle's own dispatch.
func (h *handler) handleAction(w http.ResponseWriter, r *http.Request) {
	var req chatplatform.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "無法解析操作內容", http.StatusBadRequest)
		return
	}

	resp, err := h.state.Action.Handle(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("name", r.PathValue("name")).Msg("處理面板操作失敗")
		http.Error(w, "處理操作時發生錯誤", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
