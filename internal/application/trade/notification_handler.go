package trade

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"go.uber.org/zap"
)

// DocumentNotificationHandler tells customers about order progress and
// overdue invoices. Quotes and invoices that are sent are delivered by the
// notify_document hook instead.
type DocumentNotificationHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewDocumentNotificationHandler creates a new handler for document transitions
func NewDocumentNotificationHandler(notifier Notifier, logger *zap.Logger) *DocumentNotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &DocumentNotificationHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *DocumentNotificationHandler) EventTypes() []string {
	return []string{trade.EventTypeDocumentTransitioned}
}

// Handle sends a notice when the new state is one the customer cares about.
// Delivery failures are logged and swallowed.
func (h *DocumentNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	transitioned, ok := event.(*trade.DocumentTransitionedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			trade.EventTypeDocumentTransitioned, event.EventType())
	}
	if !customerFacing(transitioned.DocumentType, transitioned.To) {
		return nil
	}

	notice := DocumentNotice{
		DocumentType: transitioned.DocumentType,
		DocumentID:   transitioned.DocumentID,
		TenantID:     transitioned.TenantID(),
		CustomerID:   transitioned.CustomerID,
		Number:       transitioned.Number,
		Status:       transitioned.To,
		TotalAmount:  transitioned.TotalAmount,
	}
	if err := h.notifier.SendDocumentEmail(ctx, notice); err != nil {
		h.logger.Warn("Failed to send document notice",
			zap.String("document_type", string(notice.DocumentType)),
			zap.String("document_id", notice.DocumentID.String()),
			zap.String("status", notice.Status),
			zap.Error(err),
		)
	}
	return nil
}

func customerFacing(docType trade.DocumentType, to string) bool {
	switch docType {
	case trade.DocumentTypeOrder:
		switch trade.OrderStatus(to) {
		case trade.OrderStatusShipped, trade.OrderStatusCompleted, trade.OrderStatusCancelled:
			return true
		}
	case trade.DocumentTypeInvoice:
		return trade.InvoiceStatus(to) == trade.InvoiceStatusOverdue
	}
	return false
}

var _ shared.EventHandler = (*DocumentNotificationHandler)(nil)
