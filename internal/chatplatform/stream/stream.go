// Package stream maintains the bot's inbound WebSocket connection to
// the chat platform, used only to notice direct messages addressed to
// the bot (the DM admin console's transport). Ported from
// websocket.rs's connect_and_handle/start_websocket loop; the
// reconnect-with-backoff/ping-loop/read-loop shape follows
// feeds/polymarket_ws.go rather than reinventing it.
package stream

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// DirectMessage is the normalized event handed to Client.Handler:
// a single non-bot post to the bot, inside a Direct Message channel.
type DirectMessage struct {
	ChannelID string
	UserID    string
	Message   string
}

// Client owns one authenticated WebSocket connection. Handler is
// invoked from the read goroutine for every "posted" event in a
// Direct Message channel whose author isn't BotUserID.
type Client struct {
	mu   sync.RWMutex
	conn *websocket.Conn

	wsURL     string
	botToken  string
	botUserID string
	stopCh    chan struct{}

	Handler func(DirectMessage)
}

// New derives the ws(s):// URL from the platform's REST base URL and
// builds a Client for it. botUserID is excluded from Handler dispatch
// so the bot never reacts to its own posts.
func New(baseURL, botToken, botUserID string) *Client {
	wsURL := strings.NewReplacer("https://", "wss://", "http://", "ws://").Replace(baseURL)
	wsURL = strings.TrimRight(wsURL, "/") + "/api/v4/websocket"
	return &Client{
		wsURL:     wsURL,
		botToken:  botToken,
		botUserID: botUserID,
		stopCh:    make(chan struct{}),
	}
}

// Run connects and reconnects forever, 5 seconds apart, until Stop is
// called. It should be run in its own goroutine.
func (c *Client) Run() {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if err := c.connect(); err != nil {
			log.Error().Err(err).Msg("WebSocket 連接失敗")
			time.Sleep(reconnectDelay)
			continue
		}

		c.readLoop()
		time.Sleep(reconnectDelay)
	}
}

// Stop closes the connection and ends Run's reconnect loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return err
	}

	authMsg := map[string]any{
		"seq":    1,
		"action": "authentication_challenge",
		"data":   map[string]string{"token": c.botToken},
	}
	if err := conn.WriteJSON(authMsg); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Info().Str("url", c.wsURL).Msg("WebSocket 連接成功")
	go c.pingLoop(conn)
	return nil
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.conn
			c.mu.RUnlock()
			if current != conn {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	conn.SetPingHandler(func(data string) error {
		return conn.WriteMessage(websocket.PongMessage, []byte(data))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket 讀取失敗")
			return
		}
		c.handleMessage(data)
	}
}

type wsEvent struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Status string          `json:"status"`
}

type postedEventData struct {
	ChannelType string `json:"channel_type"`
	Post        string `json:"post"`
}

type postData struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

func (c *Client) handleMessage(raw []byte) {
	var evt wsEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return
	}
	if evt.Status == "OK" {
		log.Info().Msg("WebSocket 認證成功")
		return
	}
	if evt.Event != "posted" {
		return
	}

	var ped postedEventData
	if err := json.Unmarshal(evt.Data, &ped); err != nil {
		return
	}
	if ped.ChannelType != "D" {
		return
	}

	var post postData
	if err := json.Unmarshal([]byte(ped.Post), &post); err != nil {
		return
	}
	if post.UserID == "" || post.ChannelID == "" || post.UserID == c.botUserID {
		return
	}

	if c.Handler != nil {
		c.Handler(DirectMessage{
			ChannelID: post.ChannelID,
			UserID:    post.UserID,
			Message:   strings.TrimSpace(post.Message),
		})
	}
}
