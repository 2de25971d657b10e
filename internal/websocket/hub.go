// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/klaxonhq/klaxon/internal/detection"
	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was
	// canceled: the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded. This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// AlertReader is the store surface the hub needs for pull commands and
// socket-initiated mutations.
type AlertReader interface {
	Active(filter *detection.Filter) []detection.Alert
	Statistics() detection.Statistics
	Acknowledge(id, actor string) bool
	Resolve(id, actor string) bool
}

// Hub maintains the set of live clients and their subscriptions and relays
// alert store change events to the subscriptions that match.
type Hub struct {
	store AlertReader

	Register   chan *Client
	Unregister chan *Client
	changes    chan detection.ChangeEvent

	// done is closed when the hub loop exits. Read pumps select against
	// it when unregistering so they cannot block on a dead loop.
	done     chan struct{}
	doneOnce sync.Once

	mu            sync.RWMutex
	clients       map[*Client]bool
	subscriptions map[*Client]*Subscription
}

// NewHub creates a hub reading from the given store surface.
func NewHub(store AlertReader) *Hub {
	return &Hub{
		store:         store,
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		changes:       make(chan detection.ChangeEvent, 256),
		done:          make(chan struct{}),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[*Client]*Subscription),
	}
}

// OnAlertChange implements detection.ChangeSink. Called synchronously from
// store mutations, so it must never block: when the hub's change buffer is
// full the event is dropped and counted rather than stalling the store.
func (h *Hub) OnAlertChange(ev detection.ChangeEvent) {
	select {
	case h.changes <- ev:
	default:
		metrics.RecordWSMessageDropped()
		logging.Warn().
			Str("alert_id", ev.Alert.ID).
			Msg("websocket change buffer full, event dropped")
	}
}

// RunWithContext runs the hub loop under supervision. When the context is
// canceled all clients are closed with a normal-closure notice and the
// method returns ctx.Err() so the supervisor sees a clean stop.
//
// Priority-based selection keeps behavior deterministic when multiple
// channels are ready: shutdown first, then client lifecycle, then change
// fan-out. Client state is therefore always consistent before an event is
// delivered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: Handle change events or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case ev := <-h.changes:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.RecordWSConnect(1)
	logging.Info().
		Str("connection_id", client.connectionID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, present := h.clients[client]
	if present {
		delete(h.clients, client)
		delete(h.subscriptions, client)
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()
	if !present {
		// Already evicted by the overflow path; the unregister from the
		// read pump is a no-op.
		return
	}
	metrics.RecordWSConnect(-1)
	logging.Info().
		Str("connection_id", client.connectionID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// fanOut delivers one change event to every matching subscription. Clients
// are visited in ID order so delivery is deterministic; a client whose send
// buffer is full is disconnected so it cannot stall the others.
func (h *Hub) fanOut(ev detection.ChangeEvent) {
	msgType := MessageAlert
	if ev.Kind == detection.ChangeUpdated {
		msgType = MessageAlertUpdate
	}
	msg := newMessage(msgType)
	alert := ev.Alert
	msg.Alert = &alert

	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		sub := h.subscriptions[client]
		if sub == nil || !sub.Matches(&alert) {
			continue
		}
		if client.deliver(msg) {
			metrics.RecordWSMessageSent(msgType)
		} else {
			metrics.RecordWSMessageDropped()
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		client.closeSend()
		delete(h.clients, client)
		delete(h.subscriptions, client)
		metrics.RecordWSConnect(-1)
		logging.Warn().
			Str("connection_id", client.connectionID).
			Msg("websocket client disconnected: send buffer overflow")
	}
}

// handleCommand dispatches one client command. Called from the client's
// read goroutine, not the hub loop, so pull commands cannot delay fan-out.
func (h *Hub) handleCommand(c *Client, cmd Command) {
	switch cmd.Type {
	case CommandSubscribe:
		h.subscribe(c, cmd.Filters)

	case CommandUnsubscribe:
		h.mu.Lock()
		delete(h.subscriptions, c)
		h.mu.Unlock()

	case CommandAcknowledge:
		if cmd.AlertID == "" || cmd.UserID == "" {
			h.sendError(c, CodeInvalidCommand, "acknowledge requires alertId and userId")
			return
		}
		if !h.store.Acknowledge(cmd.AlertID, cmd.UserID) {
			h.sendError(c, CodeAlertNotFound, "alert not found: "+cmd.AlertID)
		}
		// Success surfaces through the alert_update fan-out, same as REST.

	case CommandResolve:
		if cmd.AlertID == "" || cmd.UserID == "" {
			h.sendError(c, CodeInvalidCommand, "resolve requires alertId and userId")
			return
		}
		if !h.store.Resolve(cmd.AlertID, cmd.UserID) {
			h.sendError(c, CodeAlertNotFound, "alert not found or already resolved: "+cmd.AlertID)
		}

	case CommandGetActive:
		msg := newMessage(MessageActiveAlerts)
		msg.Alerts = h.store.Active(cmd.Filters)
		h.reply(c, msg)

	case CommandGetStats:
		stats := h.store.Statistics()
		msg := newMessage(MessageStatistics)
		msg.Stats = &stats
		h.reply(c, msg)

	default:
		h.sendError(c, CodeInvalidCommand, "unknown command type: "+cmd.Type)
	}
}

func (h *Hub) subscribe(c *Client, filters *detection.Filter) {
	sub := &Subscription{
		ID:           uuid.New().String(),
		ConnectionID: c.connectionID,
		Filters:      filters,
	}
	h.mu.Lock()
	h.subscriptions[c] = sub
	h.mu.Unlock()

	msg := newMessage(MessageSubscribed)
	msg.SubscriptionID = sub.ID
	h.reply(c, msg)
	logging.Debug().
		Str("connection_id", c.connectionID).
		Str("subscription_id", sub.ID).
		Msg("websocket subscription created")
}

func (h *Hub) sendError(c *Client, code, message string) {
	msg := newMessage(MessageError)
	msg.Code = code
	msg.Message = message
	h.reply(c, msg)
}

func (h *Hub) reply(c *Client, msg ServerMessage) {
	if c.deliver(msg) {
		metrics.RecordWSMessageSent(msg.Type)
	} else {
		metrics.RecordWSMessageDropped()
	}
}

// Subscription returns the client's current subscription, nil when
// unsubscribed.
func (h *Hub) Subscription(c *Client) *Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscriptions[c]
}

// Done reports hub loop termination; closed once RunWithContext has begun
// shutting down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is not logged as an error because cancellation is
// expected during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	h.doneOnce.Do(func() { close(h.done) })
	clientCount := h.GetClientCount()
	h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every client's send channel, which makes each
// writePump emit a normal-closure notice and exit.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
		delete(h.subscriptions, client)
		metrics.RecordWSConnect(-1)
	}
}
