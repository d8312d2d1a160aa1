// Package notification routes order state changes to role channels.
package notification

import (
	"context"
	"fmt"
	"time"

	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/common/metrics"
	"fleet-workflow/internal/permission"
	"fleet-workflow/internal/user"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelSupervisor Channel = "supervisor"
	ChannelManager    Channel = "manager"
	ChannelGeneral    Channel = "general"
)

// ChannelFor maps a role to the channel its holders listen on.
func ChannelFor(role permission.Role) Channel {
	switch role {
	case permission.RoleGeneralSupervisor:
		return ChannelSupervisor
	case permission.RoleHospitalManager:
		return ChannelManager
	default:
		return ChannelGeneral
	}
}

type Message struct {
	ID      string    `json:"id"`
	UserID  int64     `json:"userId"`
	OrderID int64     `json:"orderId"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sentAt"`
}

// Transport delivers a message to everyone listening on a channel. Delivery is not acknowledged.
type Transport interface {
	SendToRole(ctx context.Context, channel Channel, msg Message) error
}

type Router struct {
	directory user.Directory
	transport Transport
	logger    logger.Logger
}

func NewRouter(directory user.Directory, transport Transport, log logger.Logger) *Router {
	return &Router{
		directory: directory,
		transport: transport,
		logger:    log.WithFields(map[string]interface{}{"component": "notification-router"}),
	}
}

// Notify tells userID that orderID changed. An unknown user is skipped silently; transport
// failures are logged and never returned.
func (r *Router) Notify(ctx context.Context, userID, orderID int64) error {
	u, err := r.directory.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		r.logger.Debug("notification recipient not found", map[string]interface{}{"userId": userID, "orderId": orderID})
		metrics.NotificationsDispatched.WithLabelValues("none", "skipped").Inc()
		return nil
	}

	channel := ChannelFor(u.Role)
	msg := Message{
		ID:      uuid.New().String(),
		UserID:  userID,
		OrderID: orderID,
		Text:    fmt.Sprintf("Order #%d has changed and needs your attention", orderID),
		SentAt:  time.Now().UTC(),
	}

	if err := r.transport.SendToRole(ctx, channel, msg); err != nil {
		metrics.NotificationsDispatched.WithLabelValues(string(channel), "failed").Inc()
		r.logger.Warn("notification dispatch failed", map[string]interface{}{
			"channel":   string(channel),
			"userId":    userID,
			"orderId":   orderID,
			"messageId": msg.ID,
			"error":     err.Error(),
		})
		return nil
	}

	metrics.NotificationsDispatched.WithLabelValues(string(channel), "sent").Inc()
	r.logger.Info("notification dispatched", map[string]interface{}{
		"channel":   string(channel),
		"userId":    userID,
		"orderId":   orderID,
		"messageId": msg.ID,
	})
	return nil
}
