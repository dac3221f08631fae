// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free from ORM concerns.
//
// Structure:
//   - base.go: shared columns (ID, timestamps, version, tenant)
//   - catalog.go: products and their stock counter
//   - inventory.go: ledger movements and stock reservations
//   - trade.go: quotes, orders, invoices, their lines, payments, order history and number sequences
//
// Every model offers ToDomain and FromDomain; repositories only ever hand domain types to callers.
package models
