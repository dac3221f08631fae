package trade

import (
	"context"
	"testing"

	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentNotificationHandler_Handle(t *testing.T) {
	ctx := context.Background()
	order, err := trade.NewOrder(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name     string
		docType  trade.DocumentType
		to       string
		wantSent bool
	}{
		{"order shipped", trade.DocumentTypeOrder, string(trade.OrderStatusShipped), true},
		{"order completed", trade.DocumentTypeOrder, string(trade.OrderStatusCompleted), true},
		{"order cancelled", trade.DocumentTypeOrder, string(trade.OrderStatusCancelled), true},
		{"order paid is internal", trade.DocumentTypeOrder, string(trade.OrderStatusPaid), false},
		{"invoice overdue", trade.DocumentTypeInvoice, string(trade.InvoiceStatusOverdue), true},
		{"invoice sent goes through the hook", trade.DocumentTypeInvoice, string(trade.InvoiceStatusSent), false},
		{"quote transitions are ignored", trade.DocumentTypeQuote, "ACCEPTED", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			handler := NewDocumentNotificationHandler(notifier, nil)

			event := trade.NewDocumentTransitionedEvent(tt.docType, &order.Document, "X", tt.to, "t")
			require.NoError(t, handler.Handle(ctx, event))

			sent := notifier.sent()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, tt.docType, sent[0].DocumentType)
			assert.Equal(t, order.ID, sent[0].DocumentID)
			assert.Equal(t, order.TenantID, sent[0].TenantID)
			assert.Equal(t, tt.to, sent[0].Status)
		})
	}

	t.Run("notifier failure is swallowed", func(t *testing.T) {
		notifier := &recordingNotifier{err: assert.AnError}
		handler := NewDocumentNotificationHandler(notifier, nil)
		event := trade.NewDocumentTransitionedEvent(trade.DocumentTypeOrder, &order.Document,
			string(trade.OrderStatusPaid), string(trade.OrderStatusShipped), "ship")
		assert.NoError(t, handler.Handle(ctx, event))
		assert.Len(t, notifier.sent(), 1)
	})

	t.Run("foreign event is an error", func(t *testing.T) {
		handler := NewDocumentNotificationHandler(nil, nil)
		event := inventory.NewStockAdjustedEvent(uuid.New(), uuid.New(), 1, 1, inventory.ReasonRestock, "PO-1")
		assert.Error(t, handler.Handle(ctx, event))
		assert.Equal(t, []string{trade.EventTypeDocumentTransitioned}, handler.EventTypes())
	})
}
