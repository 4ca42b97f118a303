package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 16 * 1024
	sendBufferSize    = 256
	frameTimeout      = 10 * time.Second
	onlineTTL         = 2 * time.Minute // 在线状态过期时间
	presenceHeartbeat = time.Minute
	courseChannel     = "chat:course"

	defaultChatRate  = 10
	defaultChatBurst = 20
)

// 帧类型
const (
	FrameJoinCourseRoom = "JoinCourseRoom"
	FrameSendMessage    = "SendMessage"
	FrameUserJoined     = "UserJoined"
	FrameReceiveMessage = "ReceiveMessage"
	FrameError          = "Error"
)

var errRateLimited = &util.AppError{Kind: "rate_limited", Message: "too many frames, slow down"}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type JoinCourseRoomData struct {
	CourseID uint `json:"courseId"`
}

type SendMessageData struct {
	CourseID   uint   `json:"courseId"`
	ReceiverID uint   `json:"receiverId"`
	Message    string `json:"message"`
}

type UserJoinedData struct {
	UserID   uint `json:"userId"`
	CourseID uint `json:"courseId"`
}

type ErrorData struct {
	Method string `json:"method"`
	Error  string `json:"error"`
	Kind   string `json:"kind"`
}

// PubSubMessage 跨实例转发，各实例只投递给本地房间成员
type PubSubMessage struct {
	CourseID uint            `json:"courseId"`
	Payload  json.RawMessage `json:"payload"`
}

type Client struct {
	Hub     *ChatHub
	Conn    *websocket.Conn
	Send    chan []byte
	ID      string
	User    UserContext
	Limiter *rate.Limiter // 限流器

	// rooms 由 Hub.mu 保护
	rooms map[uint]struct{}
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.LeaveAll(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.User.UserID))
			}
			break
		}

		if !c.Limiter.Allow() {
			c.Hub.sendError(c, "", errRateLimited)
			continue
		}

		// 同一连接的帧顺序处理，保证先落库再广播的顺序
		c.Hub.dispatch(c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ChatHub 显式维护 courseId -> 连接集合
type ChatHub struct {
	mu        sync.RWMutex
	rooms     map[uint]map[string]*Client
	clients   map[string]*Client
	userConns map[uint]int

	Redis      *redis.Client
	Authorizer *ChatAuthorizer
	Chat       *ChatService
	RateLimit  rate.Limit
	RateBurst  int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewChatHub rdb 为 nil 时只在本实例内投递
func NewChatHub(rdb *redis.Client, authorizer *ChatAuthorizer, chat *ChatService, ratePerSecond float64, burst int) *ChatHub {
	if ratePerSecond <= 0 {
		ratePerSecond = defaultChatRate
	}
	if burst <= 0 {
		burst = defaultChatBurst
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatHub{
		rooms:      make(map[uint]map[string]*Client),
		clients:    make(map[string]*Client),
		userConns:  make(map[uint]int),
		Redis:      rdb,
		Authorizer: authorizer,
		Chat:       chat,
		RateLimit:  rate.Limit(ratePerSecond),
		RateBurst:  burst,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (h *ChatHub) NewClient(conn *websocket.Conn, user UserContext) *Client {
	return &Client{
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		ID:      uuid.NewString(),
		User:    user,
		Limiter: rate.NewLimiter(h.RateLimit, h.RateBurst),
		rooms:   make(map[uint]struct{}),
	}
}

func (h *ChatHub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.userConns[c.User.UserID]++
	first := h.userConns[c.User.UserID] == 1
	h.mu.Unlock()

	monitoring.IMOnlineConnections.Inc()
	if first {
		h.setOnline(c.User.UserID, true)
	}
}

// LeaveAll 断开时移出所有房间，重复调用无副作用
func (h *ChatHub) LeaveAll(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for courseID := range c.rooms {
		if room, ok := h.rooms[courseID]; ok {
			delete(room, c.ID)
			if len(room) == 0 {
				delete(h.rooms, courseID)
			}
		}
	}
	c.rooms = make(map[uint]struct{})
	close(c.Send)

	h.userConns[c.User.UserID]--
	last := h.userConns[c.User.UserID] <= 0
	if last {
		delete(h.userConns, c.User.UserID)
	}
	h.mu.Unlock()

	monitoring.IMOnlineConnections.Dec()
	if last {
		h.setOnline(c.User.UserID, false)
	}
}

// JoinRoom 授权失败时不改变房间成员
func (h *ChatHub) JoinRoom(ctx context.Context, c *Client, courseID uint) error {
	if _, err := h.Authorizer.AuthorizeJoin(ctx, c.User, courseID); err != nil {
		return err
	}

	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return util.Validation("connection %s is closed", c.ID)
	}
	room, ok := h.rooms[courseID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[courseID] = room
	}
	room[c.ID] = c
	c.rooms[courseID] = struct{}{}
	h.mu.Unlock()

	h.Broadcast(ctx, courseID, WSMessage{
		Type: FrameUserJoined,
		Data: UserJoinedData{UserID: c.User.UserID, CourseID: courseID},
	})
	return nil
}

// SendMessage 先落库再广播
func (h *ChatHub) SendMessage(ctx context.Context, c *Client, in SendMessageData) (*MessageView, error) {
	view, err := h.Chat.Send(ctx, c.User, in.CourseID, in.ReceiverID, in.Message)
	if err != nil {
		return nil, err
	}
	h.BroadcastMessage(ctx, view)
	return view, nil
}

func (h *ChatHub) BroadcastMessage(ctx context.Context, view *MessageView) {
	h.Broadcast(ctx, view.CourseID, WSMessage{Type: FrameReceiveMessage, Data: view})
}

// Broadcast 尽力投递，至多一次
func (h *ChatHub) Broadcast(ctx context.Context, courseID uint, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("Failed to encode chat frame", zap.Error(err), zap.String("type", msg.Type))
		return
	}
	monitoring.IMMessageCounter.WithLabelValues(msg.Type, "out").Inc() // 记录下行消息

	if h.Redis != nil {
		data, _ := json.Marshal(PubSubMessage{CourseID: courseID, Payload: payload})
		err := h.Redis.Publish(ctx, courseChannel, data).Err()
		if err == nil {
			return
		}
		logger.Log.Warn("Redis publish failed, delivering locally", zap.Error(err), zap.Uint("courseId", courseID))
	}
	h.deliverLocal(courseID, payload)
}

func (h *ChatHub) deliverLocal(courseID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[courseID] {
		select {
		case c.Send <- payload:
		default:
			logger.Log.Debug("Dropping frame for slow client", zap.String("connId", c.ID), zap.Uint("courseId", courseID))
		}
	}
}

func (h *ChatHub) sendTo(c *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

// sendError 错误帧只发给调用方
func (h *ChatHub) sendError(c *Client, method string, err error) {
	kind := string(util.KindOf(err))
	message := err.Error()
	if kind == "" {
		logger.Log.Error("Chat frame failed",
			zap.Error(err),
			zap.String("method", method),
			zap.Uint("userId", c.User.UserID))
		kind = "internal"
		message = "internal error"
	}
	h.sendTo(c, WSMessage{
		Type: FrameError,
		Data: ErrorData{Method: method, Error: message, Kind: kind},
	})
}

func (h *ChatHub) dispatch(c *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(c, "", util.Validation("malformed frame"))
		return
	}
	monitoring.IMMessageCounter.WithLabelValues(frame.Type, "in").Inc() // 记录上行消息

	ctx, cancel := context.WithTimeout(h.ctx, frameTimeout)
	defer cancel()

	switch frame.Type {
	case FrameJoinCourseRoom:
		var data JoinCourseRoomData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.CourseID == 0 {
			h.sendError(c, frame.Type, util.Validation("courseId is required"))
			return
		}
		if err := h.JoinRoom(ctx, c, data.CourseID); err != nil {
			h.sendError(c, frame.Type, err)
		}
	case FrameSendMessage:
		var data SendMessageData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.CourseID == 0 || data.ReceiverID == 0 {
			h.sendError(c, frame.Type, util.Validation("courseId and receiverId are required"))
			return
		}
		if _, err := h.SendMessage(ctx, c, data); err != nil {
			h.sendError(c, frame.Type, err)
		}
	default:
		h.sendError(c, frame.Type, util.Validation("unknown method %q", frame.Type))
	}
}

// Run 订阅跨实例广播并定期续期在线状态，未配置 redis 时直接返回
func (h *ChatHub) Run() {
	if h.Redis == nil {
		return
	}
	pubsub := h.Redis.Subscribe(h.ctx, courseChannel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	// 状态续期定时器 (Heartbeat)
	heartbeat := time.NewTicker(presenceHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var psMsg PubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			h.deliverLocal(psMsg.CourseID, psMsg.Payload)
		case <-heartbeat.C:
			h.refreshOnlineStatus()
		}
	}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("user:online:%d", userID)
}

func (h *ChatHub) setOnline(userID uint, online bool) {
	if h.Redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	var err error
	if online {
		err = h.Redis.Set(ctx, presenceKey(userID), "true", onlineTTL).Err()
	} else {
		err = h.Redis.Del(ctx, presenceKey(userID)).Err()
	}
	if err != nil {
		logger.Log.Warn("Failed to update presence", zap.Error(err), zap.Uint("userId", userID))
	}
}

// refreshOnlineStatus 刷新当前实例所有在线用户的过期时间
func (h *ChatHub) refreshOnlineStatus() {
	h.mu.RLock()
	ids := make([]uint, 0, len(h.userConns))
	for userID := range h.userConns {
		ids = append(ids, userID)
	}
	h.mu.RUnlock()
	if len(ids) == 0 {
		return
	}

	pipe := h.Redis.Pipeline()
	for _, userID := range ids {
		pipe.Expire(h.ctx, presenceKey(userID), onlineTTL)
	}
	if _, err := pipe.Exec(h.ctx); err != nil {
		logger.Log.Warn("Failed to refresh presence", zap.Error(err))
		return
	}
	logger.Log.Debug("Refreshed online status", zap.Int("count", len(ids)))
}

func (h *ChatHub) IsUserOnline(ctx context.Context, userID uint) bool {
	h.mu.RLock()
	n := h.userConns[userID]
	h.mu.RUnlock()
	if n > 0 {
		return true
	}
	if h.Redis == nil {
		return false
	}

	// 多实例部署时查 Redis
	val, err := h.Redis.Get(ctx, presenceKey(userID)).Result()
	return err == nil && val == "true"
}

// Stop 关闭所有连接并清理在线状态
func (h *ChatHub) Stop() {
	logger.Log.Info("ChatHub stopping: clearing online status and closing connections...")
	h.cancel()

	h.mu.Lock()
	closed := len(h.clients)
	for id, c := range h.clients {
		close(c.Send)
		delete(h.clients, id)
	}
	userIDs := make([]uint, 0, len(h.userConns))
	for userID := range h.userConns {
		userIDs = append(userIDs, userID)
	}
	h.rooms = make(map[uint]map[string]*Client)
	h.userConns = make(map[uint]int)
	h.mu.Unlock()

	if h.Redis != nil && len(userIDs) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		pipe := h.Redis.Pipeline()
		for _, userID := range userIDs {
			pipe.Del(ctx, presenceKey(userID))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Log.Warn("Failed to clear presence", zap.Error(err))
		}
	}

	monitoring.IMOnlineConnections.Set(0) // 停机时清空指标
	logger.Log.Info("ChatHub stopped", zap.Int("closedConnections", closed))
}

// RoomSize 当前实例内房间的连接数
func (h *ChatHub) RoomSize(courseID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[courseID])
}

func ServeWs(hub *ChatHub, w http.ResponseWriter, r *http.Request, user UserContext) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", user.UserID))
		return
	}
	client := hub.NewClient(conn, user)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
