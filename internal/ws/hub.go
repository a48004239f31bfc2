package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schoolchat/internal/logger"
	"github.com/schoolchat/internal/model"
	"github.com/schoolchat/internal/repository"
	"github.com/schoolchat/internal/storage"
	"github.com/schoolchat/internal/unread"
)

// PushNotifier sends push notifications. A nil notifier disables push.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// Hub owns all WebSocket clients and the per-user unread aggregators. Badge
// totals are pushed to clients on every change; the store keeps a cache for
// the cold /api/unread path.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	badges   map[string]*unread.Aggregator
	total    int
	maxConns int

	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
	store      storage.SessionBadgeStore
	pushClient PushNotifier

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	store storage.SessionBadgeStore,
	maxConns int,
	pushClient PushNotifier,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		badges:     make(map[string]*unread.Aggregator),
		maxConns:   maxConns,
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		store:      store,
		pushClient: pushClient,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.badges = make(map[string]*unread.Aggregator)
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	firstClient := len(h.clients[c.userID]) == 1
	h.mu.Unlock()

	if firstClient {
		h.seedBadge(c.userID)
	} else if agg := h.aggregator(c.userID); agg != nil {
		// Later tabs get the current badge immediately.
		h.sendToUser(c.userID, OutgoingEvent{Type: EventUnreadCount, Payload: UnreadCountPayload{Total: agg.Total()}})
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
		delete(h.badges, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// seedBadge builds the user's unread aggregator from the current conversation
// list and subscribes the badge push. The subscriber runs synchronously on
// every aggregator change.
func (h *Hub) seedBadge(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	convs, err := h.convRepo.ForUser(ctx, userID)
	if err != nil {
		logger.Errorf("ws seed badge user=%s: %v", userID, err)
		return
	}

	agg := unread.NewAggregator()
	agg.Replace(convs)

	h.mu.Lock()
	if _, online := h.clients[userID]; !online {
		h.mu.Unlock()
		return
	}
	h.badges[userID] = agg
	h.mu.Unlock()

	agg.Subscribe(func(total int) {
		h.sendToUser(userID, OutgoingEvent{Type: EventUnreadCount, Payload: UnreadCountPayload{Total: total}})
		cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := h.store.SetBadge(cacheCtx, userID, total); err != nil {
			logger.Errorf("ws badge cache user=%s: %v", userID, err)
		}
		cacheCancel()
	})
}

func (h *Hub) aggregator(userID string) *unread.Aggregator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.badges[userID]
}

// HandleEvent dispatches incoming WebSocket events.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev IncomingEvent) {
	switch ev.Type {
	case EventNewMessage:
		h.handleNewMessage(ctx, c, ev)
	case EventMessageRead:
		h.handleMessageRead(ctx, c, ev)
	case EventTyping:
		h.handleTyping(ctx, c, ev)
	default:
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	content := strings.TrimSpace(ev.Content)
	if ev.ConversationID == "" || content == "" {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "conversation_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	isMember, err := h.convRepo.IsMember(ctx, ev.ConversationID, c.userID)
	if err != nil {
		logger.Errorf("ws check membership conv=%s user=%s: %v", ev.ConversationID, c.userID, err)
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "internal error"})
		return
	}
	if !isMember {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "not a member"})
		return
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: ev.ConversationID,
		SenderID:       c.userID,
		Content:        content,
		Status:         model.MessageStatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.msgRepo.Create(ctx, m); err != nil {
		logger.Errorf("ws save message conv=%s user=%s: %v", ev.ConversationID, c.userID, err)
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: "failed to save message"})
		return
	}
	if saved, err := h.msgRepo.GetByID(ctx, m.ID); err == nil {
		m = saved // picks up the resolved sender name
	}

	memberIDs, err := h.convRepo.MemberIDs(ctx, ev.ConversationID)
	if err != nil {
		logger.Errorf("ws get members conv=%s: %v", ev.ConversationID, err)
		return
	}

	h.FanOutMessage(ctx, *m, memberIDs)
}

// FanOutMessage delivers a persisted message to conversation members, updates
// their unread badges and push-notifies everyone but the sender. Also used by
// the HTTP send handler.
func (h *Hub) FanOutMessage(ctx context.Context, m model.Message, memberIDs []string) {
	out := OutgoingEvent{Type: EventNewMessage, Payload: NewMessagePayload{Message: m}}
	for _, uid := range memberIDs {
		h.sendToUser(uid, out)
	}

	for _, uid := range memberIDs {
		if uid == m.SenderID {
			continue
		}
		h.refreshBadge(ctx, m.ConversationID, uid)
	}

	if h.pushClient != nil {
		senderName := m.SenderName
		if senderName == "" {
			senderName = "New message"
		}
		body := m.Content
		if len(body) > 120 {
			body = body[:117] + "..."
		}
		data := map[string]string{"conversation_id": m.ConversationID, "message_id": m.ID}
		for _, uid := range memberIDs {
			if uid != m.SenderID {
				go h.pushClient.Notify(context.Background(), uid, senderName, body, data)
			}
		}
	}
}

// refreshBadge recomputes one conversation's unread count for a user and
// feeds it to the user's aggregator (connected users only); the cold cache is
// invalidated either way.
func (h *Hub) refreshBadge(ctx context.Context, conversationID, userID string) {
	cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := h.store.InvalidateBadge(cacheCtx, userID); err != nil {
		logger.Errorf("ws badge invalidate user=%s: %v", userID, err)
	}
	cancel()

	agg := h.aggregator(userID)
	if agg == nil {
		return
	}
	count, err := h.convRepo.UnreadCount(ctx, conversationID, userID)
	if err != nil {
		logger.Errorf("ws unread count conv=%s user=%s: %v", conversationID, userID, err)
		return
	}
	conv, err := h.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		logger.Errorf("ws get conv=%s: %v", conversationID, err)
		return
	}
	conv.UnreadCount = count
	agg.Update(*conv)
}

func (h *Hub) handleMessageRead(ctx context.Context, c *Client, ev IncomingEvent) {
	if ev.ConversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.msgRepo.MarkRead(ctx, ev.ConversationID, c.userID); err != nil {
		logger.Errorf("ws mark read conv=%s user=%s: %v", ev.ConversationID, c.userID, err)
		return
	}
	if err := h.convRepo.UpdateLastRead(ctx, ev.ConversationID, c.userID, time.Now().UTC()); err != nil {
		logger.Errorf("ws update last_read_at conv=%s user=%s: %v", ev.ConversationID, c.userID, err)
	}

	h.MarkReadLocal(ctx, ev.ConversationID, c.userID)

	memberIDs, err := h.convRepo.MemberIDs(ctx, ev.ConversationID)
	if err != nil {
		logger.Errorf("ws get members for read conv=%s: %v", ev.ConversationID, err)
		return
	}
	out := OutgoingEvent{Type: EventMessageRead, Payload: MessageReadPayload{
		ConversationID: ev.ConversationID,
		UserID:         c.userID,
	}}
	for _, uid := range memberIDs {
		if uid != c.userID {
			h.sendToUser(uid, out)
		}
	}
}

// MarkReadLocal zeroes the conversation in the user's aggregator and drops
// the cached badge. Also used by the HTTP mark-read handler.
func (h *Hub) MarkReadLocal(ctx context.Context, conversationID, userID string) {
	cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := h.store.InvalidateBadge(cacheCtx, userID); err != nil {
		logger.Errorf("ws badge invalidate user=%s: %v", userID, err)
	}
	cancel()

	if agg := h.aggregator(userID); agg != nil {
		agg.MarkRead(conversationID)
	}
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, ev IncomingEvent) {
	if ev.ConversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	memberIDs, err := h.convRepo.MemberIDs(ctx, ev.ConversationID)
	if err != nil {
		logger.Errorf("ws get members for typing conv=%s: %v", ev.ConversationID, err)
		return
	}
	out := OutgoingEvent{Type: EventTyping, Payload: TypingPayload{
		ConversationID: ev.ConversationID,
		UserID:         c.userID,
	}}
	for _, uid := range memberIDs {
		if uid != c.userID {
			h.sendToUser(uid, out)
		}
	}
}

// BroadcastToConversation sends an event to all members of a conversation.
func (h *Hub) BroadcastToConversation(ctx context.Context, conversationID string, ev OutgoingEvent) {
	defer logger.DeferLogDuration("ws.BroadcastToConversation", time.Now())()
	memberIDs, err := h.convRepo.MemberIDs(ctx, conversationID)
	if err != nil {
		logger.Errorf("ws broadcast to conv %s: %v", conversationID, err)
		return
	}
	for _, uid := range memberIDs {
		h.sendToUser(uid, ev)
	}
}

func (h *Hub) sendToUser(userID string, ev OutgoingEvent) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, ev)
	}
}

func (h *Hub) sendToClient(c *Client, ev OutgoingEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
