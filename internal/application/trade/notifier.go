package trade

import (
	"context"

	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DocumentNotice is what a notifier needs to send a document to its customer
type DocumentNotice struct {
	DocumentType trade.DocumentType
	DocumentID   uuid.UUID
	TenantID     uuid.UUID
	CustomerID   uuid.UUID
	Number       string
	Status       string
	TotalAmount  decimal.Decimal
}

// Notifier delivers documents to customers. Delivery is best effort:
// errors are logged by the caller and never fail an operation.
type Notifier interface {
	SendDocumentEmail(ctx context.Context, notice DocumentNotice) error
}

// LogNotifier only logs the documents it is asked to send
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// SendDocumentEmail logs the notice
func (n *LogNotifier) SendDocumentEmail(_ context.Context, notice DocumentNotice) error {
	n.logger.Info("Document email queued",
		zap.String("document_type", string(notice.DocumentType)),
		zap.String("document_id", notice.DocumentID.String()),
		zap.String("number", notice.Number),
		zap.String("customer_id", notice.CustomerID.String()),
		zap.String("status", notice.Status),
		zap.String("total_amount", notice.TotalAmount.StringFixed(2)),
	)
	return nil
}

func noticeOf(docType trade.DocumentType, d *trade.Document, status string) DocumentNotice {
	return DocumentNotice{
		DocumentType: docType,
		DocumentID:   d.ID,
		TenantID:     d.TenantID,
		CustomerID:   d.CustomerID,
		Number:       d.Number,
		Status:       status,
		TotalAmount:  d.TotalAmount,
	}
}

var _ Notifier = (*LogNotifier)(nil)
