package services

import domain "github.com/orderhub/api/internal/domain"

// Snapshots are taken exactly once, at order or line-item creation, and are
// never recomputed. Orders are financial records; later edits to catalog or
// address data must not change what a historical order shows.

func buildProductSnapshot(product CatalogProduct) ProductSnapshot {
	return ProductSnapshot{
		SchemaVersion: domain.SnapshotSchemaVersion,
		Name:          product.Name,
		SKU:           product.SKU,
		Category:      product.Category,
		Supplier:      product.Supplier,
	}
}

func buildAddressSnapshot(address DirectoryAddress) AddressSnapshot {
	return AddressSnapshot{
		SchemaVersion: domain.SnapshotSchemaVersion,
		Label:         address.Label,
		Line1:         address.Line1,
		Line2:         address.Line2,
		City:          address.City,
		Region:        address.Region,
		PostalCode:    address.PostalCode,
		Country:       address.Country,
		Phone:         address.Phone,
	}
}
