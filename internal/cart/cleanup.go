package cart

import (
	"context"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
)

// CleanupHandler empties the server cart of a registered owner once their
// order has settled. Only lines added before settlement are removed, so a
// redelivered event leaves newer lines alone. Guests have no server cart.
type CleanupHandler struct {
	svc *Service
}

func NewCleanupHandler(svc *Service) *CleanupHandler {
	return &CleanupHandler{svc: svc}
}

func (h *CleanupHandler) Name() string { return "cart-cleanup" }

func (h *CleanupHandler) Handle(ctx context.Context, evt *domain.OrderSettledEvent) error {
	if evt.OwnerKind != domain.OwnerKindRegistered {
		return nil
	}
	if evt.OccurredAt.IsZero() {
		return h.svc.ClearCart(ctx, evt.OwnerID)
	}
	return h.svc.ClearCartBefore(ctx, evt.OwnerID, evt.OccurredAt)
}
