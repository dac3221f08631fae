package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
)

// MemoryStore is an in-memory backing store for the stock and document
// repositories. Atomically serializes units of work and restores the
// previous state when the unit fails, which mimics a rolled back transaction.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products     map[uuid.UUID]catalog.Product
	movements    []inventory.StockMovement
	reservations map[uuid.UUID]inventory.StockReservation
	quotes       map[uuid.UUID]trade.Quote
	orders       map[uuid.UUID]trade.Order
	invoices     map[uuid.UUID]trade.Invoice
	sequences    map[string]int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[uuid.UUID]catalog.Product),
		reservations: make(map[uuid.UUID]inventory.StockReservation),
		quotes:       make(map[uuid.UUID]trade.Quote),
		orders:       make(map[uuid.UUID]trade.Order),
		invoices:     make(map[uuid.UUID]trade.Invoice),
		sequences:    make(map[string]int64),
	}
}

type memorySnapshot struct {
	products     map[uuid.UUID]catalog.Product
	movements    int
	reservations map[uuid.UUID]inventory.StockReservation
	quotes       map[uuid.UUID]trade.Quote
	orders       map[uuid.UUID]trade.Order
	invoices     map[uuid.UUID]trade.Invoice
	sequences    map[string]int64
}

// Atomically runs fn as one unit of work. Units never interleave.
func (s *MemoryStore) Atomically(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memorySnapshot{
		products:     copyMap(s.products),
		movements:    len(s.movements),
		reservations: copyMap(s.reservations),
		quotes:       copyMap(s.quotes),
		orders:       copyMap(s.orders),
		invoices:     copyMap(s.invoices),
		sequences:    copyMap(s.sequences),
	}
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.movements = s.movements[:snap.movements]
	s.reservations = snap.reservations
	s.quotes = snap.quotes
	s.orders = snap.orders
	s.invoices = snap.invoices
	s.sequences = snap.sequences
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Products returns the product repository
func (s *MemoryStore) Products() catalog.ProductRepository { return memProducts{s} }

// Movements returns the stock movement repository
func (s *MemoryStore) Movements() inventory.StockMovementRepository { return memMovements{s} }

// Reservations returns the stock reservation repository
func (s *MemoryStore) Reservations() inventory.StockReservationRepository { return memReservations{s} }

// Quotes returns the quote repository
func (s *MemoryStore) Quotes() trade.QuoteRepository { return memQuotes{s} }

// Orders returns the order repository
func (s *MemoryStore) Orders() trade.OrderRepository { return memOrders{s} }

// Invoices returns the invoice repository
func (s *MemoryStore) Invoices() trade.InvoiceRepository { return memInvoices{s} }

// Sequences returns the document sequence
func (s *MemoryStore) Sequences() trade.DocumentSequence { return memSequences{s} }

// SeedProduct stores a product with the given stock and returns it
func (s *MemoryStore) SeedProduct(tenantID uuid.UUID, code, vertical string, stock int64, managed bool) *catalog.Product {
	p, err := catalog.NewProduct(tenantID, code, "Product "+code, vertical, stock, managed)
	if err != nil {
		panic(err)
	}
	if err := s.Products().Save(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

// StockOf returns the stored stock counter of a product
func (s *MemoryStore) StockOf(productID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

// AllMovements returns every stored movement in append order
func (s *MemoryStore) AllMovements() []inventory.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.StockMovement, len(s.movements))
	copy(out, s.movements)
	return out
}

// AllReservations returns every stored reservation, oldest first
func (s *MemoryStore) AllReservations() []inventory.StockReservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedReservations(s.reservations, func(inventory.StockReservation) bool { return true })
}

// --- products ---

type memProducts struct{ s *MemoryStore }

func (r memProducts) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, shared.NewNotFoundError("product", id)
	}
	return &p, nil
}

func (r memProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProducts) Save(_ context.Context, p *catalog.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *p
	r.s.products[p.ID] = c
	return nil
}

func (r memProducts) AdjustStock(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return 0, shared.NewNotFoundError("product", id)
	}
	p.Stock += delta
	r.s.products[id] = p
	return p.Stock, nil
}

func (r memProducts) DecrementIfAvailable(_ context.Context, id uuid.UUID, quantity int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return 0, shared.NewNotFoundError("product", id)
	}
	if p.Stock < quantity {
		return 0, shared.ErrInsufficientStock
	}
	p.Stock -= quantity
	r.s.products[id] = p
	return p.Stock, nil
}

// --- movements ---

type memMovements struct{ s *MemoryStore }

func (r memMovements) Append(_ context.Context, m *inventory.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r memMovements) FindByProduct(_ context.Context, productID uuid.UUID) ([]inventory.StockMovement, error) {
	return r.filter(func(m inventory.StockMovement) bool { return m.ProductID == productID }), nil
}

func (r memMovements) FindByReference(_ context.Context, tenantID uuid.UUID, reference string) ([]inventory.StockMovement, error) {
	return r.filter(func(m inventory.StockMovement) bool {
		return m.TenantID == tenantID && m.Reference == reference
	}), nil
}

func (r memMovements) SumByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	return inventory.SumMovements(r.filter(func(m inventory.StockMovement) bool { return m.ProductID == productID })), nil
}

func (r memMovements) filter(keep func(inventory.StockMovement) bool) []inventory.StockMovement {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]inventory.StockMovement, 0)
	for _, m := range r.s.movements {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// --- reservations ---

type memReservations struct{ s *MemoryStore }

func (r memReservations) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, shared.NewNotFoundError("stock reservation", id)
	}
	return &res, nil
}

func (r memReservations) FindByOrderRef(_ context.Context, tenantID uuid.UUID, orderRef string) ([]inventory.StockReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedReservations(r.s.reservations, func(res inventory.StockReservation) bool {
		return res.TenantID == tenantID && res.OrderRef == orderRef
	}), nil
}

func (r memReservations) FindOutstanding(_ context.Context, tenantID uuid.UUID, orderRef string) ([]inventory.StockReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedReservations(r.s.reservations, func(res inventory.StockReservation) bool {
		return res.TenantID == tenantID && res.OrderRef == orderRef && res.IsReserved()
	}), nil
}

func (r memReservations) FindExpired(_ context.Context, now time.Time, limit int) ([]inventory.StockReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := sortedReservations(r.s.reservations, func(res inventory.StockReservation) bool {
		return res.IsReserved() && res.ExpiresAt.Before(now)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memReservations) Create(_ context.Context, res *inventory.StockReservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.reservations[res.ID]; exists {
		return fmt.Errorf("%w: reservation %s", shared.ErrAlreadyExists, res.ID)
	}
	r.s.reservations[res.ID] = *res
	return nil
}

func (r memReservations) UpdateStatusIfReserved(_ context.Context, res *inventory.StockReservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.reservations[res.ID]
	if !ok || !stored.IsReserved() {
		return shared.ErrReservationConflict
	}
	r.s.reservations[res.ID] = *res
	return nil
}

func sortedReservations(all map[uuid.UUID]inventory.StockReservation, keep func(inventory.StockReservation) bool) []inventory.StockReservation {
	out := make([]inventory.StockReservation, 0)
	for _, res := range all {
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// --- documents ---

func cloneDocument(d trade.Document) trade.Document {
	c := d
	c.Items = append([]trade.LineItem(nil), d.Items...)
	return c
}

func checkVersion(exists bool, storedVersion, version int) error {
	if exists && storedVersion != version {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func paginate[T any](items []T, filter shared.Filter) []T {
	if !filter.Paged() {
		return items
	}
	start := filter.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + filter.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type memQuotes struct{ s *MemoryStore }

func (r memQuotes) get(tenantID, id uuid.UUID) (*trade.Quote, error) {
	q, ok := r.s.quotes[id]
	if !ok || q.TenantID != tenantID {
		return nil, shared.NewNotFoundError("quote", id)
	}
	c := q
	c.Document = cloneDocument(q.Document)
	return &c, nil
}

func (r memQuotes) FindByID(_ context.Context, tenantID, id uuid.UUID) (*trade.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(tenantID, id)
}

func (r memQuotes) FindByNumber(_ context.Context, tenantID uuid.UUID, number string) (*trade.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, q := range r.s.quotes {
		if q.TenantID == tenantID && q.Number == number {
			return r.get(tenantID, id)
		}
	}
	return nil, shared.NewNotFoundError("quote", number)
}

func (r memQuotes) FindAll(_ context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.QuoteStatus) ([]trade.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]trade.Quote, 0)
	for id, q := range r.s.quotes {
		if q.TenantID != tenantID || (len(statuses) > 0 && !containsStatus(statuses, q.Status)) || !filter.Matches(q.Number, q.CustomerID) {
			continue
		}
		c, _ := r.get(tenantID, id)
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

func (r memQuotes) FindExpired(_ context.Context, tenantID uuid.UUID, now time.Time) ([]trade.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]trade.Quote, 0)
	for id, q := range r.s.quotes {
		if q.TenantID == tenantID && q.Status.IsOpen() && q.IsExpiredAt(now) {
			c, _ := r.get(tenantID, id)
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r memQuotes) Save(_ context.Context, q *trade.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, exists := r.s.quotes[q.ID]
	if err := checkVersion(exists, stored.Version, q.Version); err != nil {
		return err
	}
	if exists {
		q.IncrementVersion()
	}
	c := *q
	c.Document = cloneDocument(q.Document)
	r.s.quotes[q.ID] = c
	return nil
}

func (r memQuotes) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.get(tenantID, id); err != nil {
		return err
	}
	delete(r.s.quotes, id)
	return nil
}

type memOrders struct{ s *MemoryStore }

func (r memOrders) get(tenantID, id uuid.UUID) (*trade.Order, error) {
	o, ok := r.s.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, shared.NewNotFoundError("order", id)
	}
	c := o
	c.Document = cloneDocument(o.Document)
	c.History = append([]trade.StatusChange(nil), o.History...)
	return &c, nil
}

func (r memOrders) FindByID(_ context.Context, tenantID, id uuid.UUID) (*trade.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(tenantID, id)
}

func (r memOrders) FindByNumber(_ context.Context, tenantID uuid.UUID, number string) (*trade.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, o := range r.s.orders {
		if o.TenantID == tenantID && o.Number == number {
			return r.get(tenantID, id)
		}
	}
	return nil, shared.NewNotFoundError("order", number)
}

func (r memOrders) FindAll(_ context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.OrderStatus) ([]trade.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]trade.Order, 0)
	for id, o := range r.s.orders {
		if o.TenantID != tenantID || (len(statuses) > 0 && !containsStatus(statuses, o.Status)) || !filter.Matches(o.Number, o.CustomerID) {
			continue
		}
		c, _ := r.get(tenantID, id)
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

func (r memOrders) Save(_ context.Context, o *trade.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, exists := r.s.orders[o.ID]
	if err := checkVersion(exists, stored.Version, o.Version); err != nil {
		return err
	}
	if exists {
		o.IncrementVersion()
	}
	c := *o
	c.Document = cloneDocument(o.Document)
	c.History = append([]trade.StatusChange(nil), o.History...)
	r.s.orders[o.ID] = c
	return nil
}

func (r memOrders) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.get(tenantID, id); err != nil {
		return err
	}
	delete(r.s.orders, id)
	return nil
}

type memInvoices struct{ s *MemoryStore }

func (r memInvoices) get(tenantID, id uuid.UUID) (*trade.Invoice, error) {
	inv, ok := r.s.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, shared.NewNotFoundError("invoice", id)
	}
	c := inv
	c.Document = cloneDocument(inv.Document)
	c.Payments = append([]trade.Payment(nil), inv.Payments...)
	return &c, nil
}

func (r memInvoices) FindByID(_ context.Context, tenantID, id uuid.UUID) (*trade.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(tenantID, id)
}

func (r memInvoices) FindByNumber(_ context.Context, tenantID uuid.UUID, number string) (*trade.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, inv := range r.s.invoices {
		if inv.TenantID == tenantID && inv.Number == number {
			return r.get(tenantID, id)
		}
	}
	return nil, shared.NewNotFoundError("invoice", number)
}

func (r memInvoices) FindAll(_ context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.InvoiceStatus) ([]trade.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]trade.Invoice, 0)
	for id, inv := range r.s.invoices {
		if inv.TenantID != tenantID || (len(statuses) > 0 && !containsStatus(statuses, inv.Status)) || !filter.Matches(inv.Number, inv.CustomerID) {
			continue
		}
		c, _ := r.get(tenantID, id)
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

func (r memInvoices) FindBySourceOrder(_ context.Context, tenantID, orderID uuid.UUID) (*trade.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, inv := range r.s.invoices {
		if inv.TenantID == tenantID && inv.SourceOrderID != nil && *inv.SourceOrderID == orderID {
			return r.get(tenantID, id)
		}
	}
	return nil, shared.NewNotFoundError("invoice", orderID)
}

func (r memInvoices) FindPastDue(_ context.Context, tenantID uuid.UUID, now time.Time) ([]trade.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]trade.Invoice, 0)
	for id, inv := range r.s.invoices {
		open := inv.Status == trade.InvoiceStatusSent || inv.Status == trade.InvoiceStatusPartiallyPaid
		if inv.TenantID == tenantID && open && inv.IsPastDueAt(now) {
			c, _ := r.get(tenantID, id)
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r memInvoices) Save(_ context.Context, inv *trade.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, exists := r.s.invoices[inv.ID]
	if err := checkVersion(exists, stored.Version, inv.Version); err != nil {
		return err
	}
	if exists {
		inv.IncrementVersion()
	}
	c := *inv
	c.Document = cloneDocument(inv.Document)
	c.Payments = append([]trade.Payment(nil), inv.Payments...)
	r.s.invoices[inv.ID] = c
	return nil
}

type memSequences struct{ s *MemoryStore }

func (r memSequences) Next(_ context.Context, tenantID uuid.UUID, docType trade.DocumentType, day time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s", tenantID, docType, day.Format("20060102"))
	r.s.sequences[key]++
	return r.s.sequences[key], nil
}

func containsStatus[S comparable](statuses []S, s S) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
