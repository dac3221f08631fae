package trade

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
)

type itemAdder interface {
	AddItem(in trade.LineItemInput) (*trade.LineItem, error)
}

type itemEditor interface {
	itemAdder
	RemoveItem(itemID uuid.UUID) error
	SortedItems() []trade.LineItem
}

// validateItems checks every line before anything is touched.
// Field names are prefixed with the line index, e.g. items[1].quantity.
func validateItems(items []LineItemRequest) error {
	v := &shared.ValidationError{}
	for i, it := range items {
		err := it.input().Validate()
		if err == nil {
			continue
		}
		var fields *shared.ValidationError
		if !errors.As(err, &fields) {
			return err
		}
		for field, msgs := range fields.Fields {
			for _, msg := range msgs {
				v.Add(fmt.Sprintf("items[%d].%s", i, field), msg)
			}
		}
	}
	return v.OrNil()
}

// resolveItems checks that every product belongs to the tenant and fills
// missing product names from the catalog
func resolveItems(ctx context.Context, w *work, tenantID uuid.UUID, items []LineItemRequest) ([]trade.LineItemInput, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	products, err := w.repos.ProductRepo().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := tenantProducts(products, tenantID)

	inputs := make([]trade.LineItemInput, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, shared.NewNotFoundError("product", it.ProductID)
		}
		in := it.input()
		if in.ProductName == "" {
			in.ProductName = p.Name
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func addItems(d itemAdder, inputs []trade.LineItemInput) error {
	for _, in := range inputs {
		if _, err := d.AddItem(in); err != nil {
			return err
		}
	}
	return nil
}

func replaceItems(d itemEditor, inputs []trade.LineItemInput) error {
	for _, li := range d.SortedItems() {
		if err := d.RemoveItem(li.ID); err != nil {
			return err
		}
	}
	return addItems(d, inputs)
}

func tenantProducts(products []catalog.Product, tenantID uuid.UUID) map[uuid.UUID]*catalog.Product {
	byID := make(map[uuid.UUID]*catalog.Product, len(products))
	for i := range products {
		if products[i].OwnedBy(tenantID) {
			byID[products[i].ID] = &products[i]
		}
	}
	return byID
}

func sortedProductIDs(quantities map[uuid.UUID]int64) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
