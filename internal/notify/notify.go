// Package notify writes the in-app notifications that follow a settled order.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
)

type Store interface {
	ListAdminIDs(ctx context.Context) ([]string, error)
	CreateNotifications(ctx context.Context, batch []domain.Notification) (int, error)
}

type Handler struct {
	store Store
	log   *slog.Logger
}

func NewHandler(store Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log.With("component", "notify")}
}

func (h *Handler) Name() string { return "notify" }

// Handle sends the owner confirmation and the admin fan-out. Replays of the
// same event write nothing new.
func (h *Handler) Handle(ctx context.Context, evt *domain.OrderSettledEvent) error {
	admins, err := h.store.ListAdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	batch := make([]domain.Notification, 0, len(admins)+1)
	if evt.OwnerKind == domain.OwnerKindRegistered {
		batch = append(batch, ownerNotification(evt))
	}
	title, message := adminText(evt)
	for _, id := range admins {
		batch = append(batch, domain.Notification{
			UserID:  id,
			EventID: evt.EventID + ":admin",
			Title:   title,
			Message: message,
			Type:    domain.NotificationOrder,
			Link:    "/admin/orders/" + evt.OrderID,
		})
	}

	n, err := h.store.CreateNotifications(ctx, batch)
	if err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}
	h.log.InfoContext(ctx, "order notifications sent",
		"order_id", evt.OrderID, "event_id", evt.EventID, "written", n, "admins", len(admins))
	return nil
}

func ownerNotification(evt *domain.OrderSettledEvent) domain.Notification {
	return domain.Notification{
		UserID:  evt.OwnerID,
		EventID: evt.EventID + ":owner",
		Title:   "Order Confirmed",
		Message: fmt.Sprintf("Your order #%s for $%s has been confirmed and is being processed.",
			domain.ShortID(evt.OrderID), evt.Total.StringFixed(2)),
		Type: domain.NotificationOrder,
		Link: "/orders/" + evt.OrderID,
	}
}

// adminText varies with how the payment was matched to the order.
func adminText(evt *domain.OrderSettledEvent) (string, string) {
	short := domain.ShortID(evt.OrderID)
	switch evt.Path {
	case domain.SettledByReference:
		return "Payment Confirmed", fmt.Sprintf("Payment confirmed for Order #%s", short)
	case domain.SettledByOrderID:
		return "Order Payment Received", fmt.Sprintf("Order #%s has been paid and is ready for processing.", short)
	default:
		from := evt.OwnerName
		if from == "" {
			from = "a guest"
		}
		return "New Order Received", fmt.Sprintf("Order #%s from %s for $%s", short, from, evt.Total.StringFixed(2))
	}
}
