package models

import (
	"github.com/erp/backoffice/internal/domain/catalog"
)

// ProductModel is the persistence model for the stock-relevant slice of a catalog product.
type ProductModel struct {
	TenantModel
	Code               string `gorm:"type:varchar(50);not null;index"`
	Name               string `gorm:"type:varchar(200);not null"`
	Stock              int64  `gorm:"not null"`
	ManagedByInventory bool   `gorm:"not null"`
	VerticalTag        string `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		TenantAggregate:    m.TenantAggregate(),
		Code:               m.Code,
		Name:               m.Name,
		Stock:              m.Stock,
		ManagedByInventory: m.ManagedByInventory,
		VerticalTag:        m.VerticalTag,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.SetTenantAggregate(p.TenantAggregate)
	m.Code = p.Code
	m.Name = p.Name
	m.Stock = p.Stock
	m.ManagedByInventory = p.ManagedByInventory
	m.VerticalTag = p.VerticalTag
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
