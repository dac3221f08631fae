package trade

import (
	"context"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) createQuote(t *testing.T, expiresAt *time.Time, items ...LineItemRequest) QuoteResponse {
	t.Helper()
	r := f.quotes.Create(context.Background(), f.tenantID, f.actor, CreateQuoteRequest{
		CustomerID: testutil.NewTestUUID("customer"),
		ExpiresAt:  expiresAt,
		Items:      items,
	})
	requireOk(t, r)
	return r.Data.(QuoteResponse)
}

func TestQuoteService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("numbers the quote and computes totals", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		item := line(product.ID, 3, "100")
		item.TaxRate = mustDecimal("0.2")

		q := f.createQuote(t, nil, item)

		assert.Equal(t, "QUO-20260315-000001", q.Number)
		assert.Equal(t, string(trade.QuoteStatusDraft), q.Status)
		assert.Equal(t, testNow.Add(trade.DefaultQuoteValidity), q.ExpiresAt)
		require.Len(t, q.Items, 1)
		assert.Equal(t, "Product SKU-1", q.Items[0].ProductName)
		assert.True(t, q.Subtotal.Equal(mustDecimal("300")))
		assert.True(t, q.TaxAmount.Equal(mustDecimal("60")))
		assert.True(t, q.TotalAmount.Equal(mustDecimal("360")))
		assert.Equal(t, 1, f.publisher.Count(trade.EventTypeDocumentCreated))
	})

	t.Run("second quote of the day gets the next number", func(t *testing.T) {
		f := newFixture(t)
		f.createQuote(t, nil)
		q := f.createQuote(t, nil)
		assert.Equal(t, "QUO-20260315-000002", q.Number)
	})

	t.Run("invalid lines are reported per index and nothing is stored", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)

		r := f.quotes.Create(ctx, f.tenantID, f.actor, CreateQuoteRequest{
			CustomerID: testutil.NewTestUUID("customer"),
			Items:      []LineItemRequest{line(product.ID, 1, "10"), line(product.ID, 0, "10")},
		})

		assert.False(t, r.Success)
		assert.Equal(t, "VALIDATION_ERROR", r.Code)
		assert.Contains(t, r.Errors, "items[1].quantity")
		assert.NotContains(t, r.Errors, "items[0].quantity")

		list := f.quotes.List(ctx, f.tenantID, shared.DefaultFilter())
		requireOk(t, list)
		assert.Empty(t, list.Data)
	})

	t.Run("missing customer is a validation error", func(t *testing.T) {
		f := newFixture(t)
		r := f.quotes.Create(ctx, f.tenantID, f.actor, CreateQuoteRequest{})
		assert.False(t, r.Success)
		assert.Contains(t, r.Errors, "customer_id")
	})

	t.Run("product of another tenant is not found", func(t *testing.T) {
		f := newFixture(t)
		foreign := f.store.SeedProduct(testutil.NewTestUUID("other-tenant"), "SKU-X", catalog.VerticalRetail, 10, true)

		r := f.quotes.Create(ctx, f.tenantID, f.actor, CreateQuoteRequest{
			CustomerID: testutil.NewTestUUID("customer"),
			Items:      []LineItemRequest{line(foreign.ID, 1, "10")},
		})
		assert.False(t, r.Success)
		assert.Equal(t, "NOT_FOUND", r.Code)
	})
}

func TestQuoteService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("send notifies the customer once committed", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		q := f.createQuote(t, nil, line(product.ID, 1, "50"))

		r := f.quotes.Send(ctx, f.tenantID, q.ID, f.actor)
		requireOk(t, r)
		assert.Equal(t, string(trade.QuoteStatusSent), r.Data.(QuoteResponse).Status)

		notices := f.notifier.sent()
		require.Len(t, notices, 1)
		assert.Equal(t, q.Number, notices[0].Number)
		assert.Equal(t, trade.DocumentTypeQuote, notices[0].DocumentType)
		assert.Equal(t, 1, f.publisher.Count(trade.EventTypeDocumentTransitioned))
	})

	t.Run("sending an empty quote is rejected by its guard", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t, nil)

		r := f.quotes.Send(ctx, f.tenantID, q.ID, f.actor)

		assert.False(t, r.Success)
		assert.Equal(t, "GUARD_REJECTED", r.Code)
		assert.Equal(t, "Cannot send the quote: condition 'quote_has_items' not met", r.Message)
		assert.Equal(t, []string{r.Message}, r.Errors[NonFieldErrors])
		assert.Empty(t, f.notifier.sent())

		got := f.quotes.Get(ctx, f.tenantID, q.ID)
		requireOk(t, got)
		assert.Equal(t, string(trade.QuoteStatusDraft), got.Data.(QuoteResponse).Status)
	})

	t.Run("notifier failure does not fail the send", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.err = errMailDown
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		q := f.createQuote(t, nil, line(product.ID, 1, "50"))

		r := f.quotes.Send(ctx, f.tenantID, q.ID, f.actor)
		requireOk(t, r)
		assert.Len(t, f.notifier.sent(), 1)
	})

	t.Run("illegal trigger names the status", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t, nil)

		r := f.quotes.Accept(ctx, f.tenantID, q.ID, f.actor)

		assert.False(t, r.Success)
		assert.Equal(t, "ILLEGAL_TRANSITION", r.Code)
		assert.Equal(t, "Cannot accept a quote in status DRAFT", r.Message)
	})

	t.Run("expired quote cannot be accepted", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		past := testNow.Add(-time.Hour)
		q := f.createQuote(t, &past, line(product.ID, 1, "50"))
		requireOk(t, f.quotes.Send(ctx, f.tenantID, q.ID, f.actor))

		r := f.quotes.Accept(ctx, f.tenantID, q.ID, f.actor)
		assert.False(t, r.Success)
		assert.Equal(t, "GUARD_REJECTED", r.Code)
	})

	t.Run("pending quote can be accepted or rejected", func(t *testing.T) {
		tests := []struct {
			name     string
			decide   func(f *fixture, id uuid.UUID) Result
			expected trade.QuoteStatus
		}{
			{"accept", func(f *fixture, id uuid.UUID) Result { return f.quotes.Accept(ctx, f.tenantID, id, f.actor) }, trade.QuoteStatusAccepted},
			{"reject", func(f *fixture, id uuid.UUID) Result { return f.quotes.Reject(ctx, f.tenantID, id, f.actor) }, trade.QuoteStatusRejected},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
				q := f.createQuote(t, nil, line(product.ID, 1, "50"))
				requireOk(t, f.quotes.Send(ctx, f.tenantID, q.ID, f.actor))
				requireOk(t, f.quotes.MarkPending(ctx, f.tenantID, q.ID, f.actor))

				r := tt.decide(f, q.ID)
				requireOk(t, r)
				assert.Equal(t, string(tt.expected), r.Data.(QuoteResponse).Status)
			})
		}
	})

	t.Run("cancel only from draft", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		draft := f.createQuote(t, nil)
		sent := f.createQuote(t, nil, line(product.ID, 1, "50"))
		requireOk(t, f.quotes.Send(ctx, f.tenantID, sent.ID, f.actor))

		requireOk(t, f.quotes.Cancel(ctx, f.tenantID, draft.ID, f.actor))
		r := f.quotes.Cancel(ctx, f.tenantID, sent.ID, f.actor)
		assert.Equal(t, "ILLEGAL_TRANSITION", r.Code)
	})
}

func TestQuoteService_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("update replaces lines and notes of a draft", func(t *testing.T) {
		f := newFixture(t)
		p1 := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		p2 := f.store.SeedProduct(f.tenantID, "SKU-2", catalog.VerticalRetail, 10, true)
		q := f.createQuote(t, nil, line(p1.ID, 1, "10"))

		notes := "Call before delivery"
		r := f.quotes.Update(ctx, f.tenantID, q.ID, f.actor, UpdateQuoteRequest{
			Notes: &notes,
			Items: []LineItemRequest{line(p2.ID, 2, "15")},
		})
		requireOk(t, r)

		updated := r.Data.(QuoteResponse)
		assert.Equal(t, notes, updated.Notes)
		require.Len(t, updated.Items, 1)
		assert.Equal(t, p2.ID, updated.Items[0].ProductID)
		assert.True(t, updated.TotalAmount.Equal(mustDecimal("30")))
	})

	t.Run("add and remove items", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		q := f.createQuote(t, nil)

		r := f.quotes.AddItem(ctx, f.tenantID, q.ID, f.actor, line(product.ID, 2, "5"))
		requireOk(t, r)
		items := r.Data.(QuoteResponse).Items
		require.Len(t, items, 1)

		r = f.quotes.RemoveItem(ctx, f.tenantID, q.ID, items[0].ID, f.actor)
		requireOk(t, r)
		assert.Empty(t, r.Data.(QuoteResponse).Items)
	})

	t.Run("sent quote is read-only", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
		q := f.createQuote(t, nil, line(product.ID, 1, "10"))
		requireOk(t, f.quotes.Send(ctx, f.tenantID, q.ID, f.actor))

		notes := "late change"
		r := f.quotes.Update(ctx, f.tenantID, q.ID, f.actor, UpdateQuoteRequest{Notes: &notes})
		assert.Equal(t, "INVALID_STATE", r.Code)

		r = f.quotes.Delete(ctx, f.tenantID, q.ID)
		assert.Equal(t, "INVALID_STATE", r.Code)
	})

	t.Run("delete a draft", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t, nil)

		requireOk(t, f.quotes.Delete(ctx, f.tenantID, q.ID))
		r := f.quotes.Get(ctx, f.tenantID, q.ID)
		assert.Equal(t, "NOT_FOUND", r.Code)
	})

	t.Run("other tenant cannot see the quote", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t, nil)

		r := f.quotes.Get(ctx, testutil.NewTestUUID("other-tenant"), q.ID)
		assert.False(t, r.Success)
		assert.Equal(t, "NOT_FOUND", r.Code)
	})
}

func TestQuoteService_ConvertToOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
	q := f.createQuote(t, nil, line(product.ID, 3, "20"))
	requireOk(t, f.quotes.Send(ctx, f.tenantID, q.ID, f.actor))
	requireOk(t, f.quotes.Accept(ctx, f.tenantID, q.ID, f.actor))

	r := f.quotes.ConvertToOrder(ctx, f.tenantID, q.ID, f.actor)
	requireOk(t, r)

	order := r.Data.(OrderResponse)
	assert.Equal(t, "ORD-20260315-000001", order.Number)
	assert.Equal(t, string(trade.OrderStatusCreated), order.Status)
	require.NotNil(t, order.SourceQuoteID)
	assert.Equal(t, q.ID, *order.SourceQuoteID)
	require.Len(t, order.Items, 1)
	assert.NotEqual(t, q.Items[0].ID, order.Items[0].ID)
	assert.True(t, order.TotalAmount.Equal(q.TotalAmount))

	converted := f.quotes.Get(ctx, f.tenantID, q.ID).Data.(QuoteResponse)
	assert.Equal(t, string(trade.QuoteStatusConverted), converted.Status)
	require.NotNil(t, converted.ConvertedOrderID)
	assert.Equal(t, order.ID, *converted.ConvertedOrderID)
	assert.Equal(t, int64(10), f.store.StockOf(product.ID))

	again := f.quotes.ConvertToOrder(ctx, f.tenantID, q.ID, f.actor)
	assert.Equal(t, "ILLEGAL_TRANSITION", again.Code)
}

func TestQuoteService_Duplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
	q := f.createQuote(t, nil, line(product.ID, 2, "40"))
	requireOk(t, f.quotes.Send(ctx, f.tenantID, q.ID, f.actor))
	requireOk(t, f.quotes.Reject(ctx, f.tenantID, q.ID, f.actor))

	r := f.quotes.Duplicate(ctx, f.tenantID, q.ID, f.actor)
	requireOk(t, r)

	dup := r.Data.(QuoteResponse)
	assert.NotEqual(t, q.ID, dup.ID)
	assert.Equal(t, "QUO-20260315-000002", dup.Number)
	assert.Equal(t, string(trade.QuoteStatusDraft), dup.Status)
	assert.Equal(t, testNow.Add(trade.DefaultQuoteValidity), dup.ExpiresAt)
	require.Len(t, dup.Items, 1)
	assert.True(t, dup.TotalAmount.Equal(q.TotalAmount))
}

func TestQuoteService_BulkExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.store.SeedProduct(f.tenantID, "SKU-1", catalog.VerticalRetail, 10, true)
	past := testNow.Add(-time.Hour)
	stale := f.createQuote(t, &past, line(product.ID, 1, "10"))
	requireOk(t, f.quotes.Send(ctx, f.tenantID, stale.ID, f.actor))
	staleDraft := f.createQuote(t, &past)
	fresh := f.createQuote(t, nil)

	listed := f.quotes.ListExpired(ctx, f.tenantID)
	requireOk(t, listed)
	assert.Len(t, listed.Data, 2)

	r := f.quotes.BulkExpire(ctx, f.tenantID, f.actor)
	requireOk(t, r)
	bulk := r.Data.(BulkResponse)
	assert.Equal(t, 2, bulk.Processed)
	assert.Zero(t, bulk.Failed)
	assert.ElementsMatch(t, []string{stale.Number, staleDraft.Number}, bulk.Numbers)

	got := f.quotes.Get(ctx, f.tenantID, fresh.ID).Data.(QuoteResponse)
	assert.Equal(t, string(trade.QuoteStatusDraft), got.Status)

	again := f.quotes.BulkExpire(ctx, f.tenantID, f.actor)
	requireOk(t, again)
	assert.Zero(t, again.Data.(BulkResponse).Processed)
}
