package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pfirestore "github.com/orderhub/api/internal/platform/firestore"
	"github.com/orderhub/api/internal/services"
)

const (
	productCollection = "products"
	addressCollection = "addresses"
	actorCollection   = "users"
)

// CatalogAdapter serves read-only product lookups from the catalog collection.
// The ledger only ever reads catalog data to price and snapshot line items.
type CatalogAdapter struct {
	provider *pfirestore.Provider
}

// NewCatalogAdapter constructs a Firestore-backed product catalog.
func NewCatalogAdapter(provider *pfirestore.Provider) (*CatalogAdapter, error) {
	if provider == nil {
		return nil, errors.New("catalog adapter requires firestore provider")
	}
	return &CatalogAdapter{provider: provider}, nil
}

// GetProduct loads a single catalog product.
func (a *CatalogAdapter) GetProduct(ctx context.Context, productID string) (services.CatalogProduct, error) {
	client, err := a.provider.Client(ctx)
	if err != nil {
		return services.CatalogProduct{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return services.CatalogProduct{}, errors.New("catalog adapter: product id is required")
	}

	snap, err := pfirestore.GetDoc(ctx, client.Collection(productCollection).Doc(productID))
	if err != nil {
		return services.CatalogProduct{}, err
	}

	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return services.CatalogProduct{}, fmt.Errorf("catalog adapter: decode %s: %w", snap.Ref.ID, err)
	}
	return services.CatalogProduct{
		ID:        snap.Ref.ID,
		Name:      doc.Name,
		SKU:       doc.SKU,
		Category:  doc.Category,
		Supplier:  doc.Supplier,
		Price:     doc.Price,
		Orderable: doc.Orderable,
	}, nil
}

type productDocument struct {
	Name      string `firestore:"name"`
	SKU       string `firestore:"sku"`
	Category  string `firestore:"category,omitempty"`
	Supplier  string `firestore:"supplier,omitempty"`
	Price     int64  `firestore:"price"`
	Orderable bool   `firestore:"orderable"`
}

// DirectoryAdapter resolves delivery addresses and actors from the account
// collections.
type DirectoryAdapter struct {
	provider *pfirestore.Provider
}

// NewDirectoryAdapter constructs a Firestore-backed directory.
func NewDirectoryAdapter(provider *pfirestore.Provider) (*DirectoryAdapter, error) {
	if provider == nil {
		return nil, errors.New("directory adapter requires firestore provider")
	}
	return &DirectoryAdapter{provider: provider}, nil
}

// GetAddress loads a delivery address.
func (a *DirectoryAdapter) GetAddress(ctx context.Context, addressID string) (services.DirectoryAddress, error) {
	client, err := a.provider.Client(ctx)
	if err != nil {
		return services.DirectoryAddress{}, err
	}
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return services.DirectoryAddress{}, errors.New("directory adapter: address id is required")
	}

	snap, err := pfirestore.GetDoc(ctx, client.Collection(addressCollection).Doc(addressID))
	if err != nil {
		return services.DirectoryAddress{}, err
	}

	var doc addressDocument
	if err := snap.DataTo(&doc); err != nil {
		return services.DirectoryAddress{}, fmt.Errorf("directory adapter: decode %s: %w", snap.Ref.ID, err)
	}
	return services.DirectoryAddress{
		ID:         snap.Ref.ID,
		Label:      doc.Label,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		Region:     doc.Region,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
		Phone:      doc.Phone,
	}, nil
}

// GetActor loads the display record for a user.
func (a *DirectoryAdapter) GetActor(ctx context.Context, actorID string) (services.Actor, error) {
	client, err := a.provider.Client(ctx)
	if err != nil {
		return services.Actor{}, err
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return services.Actor{}, errors.New("directory adapter: actor id is required")
	}

	snap, err := pfirestore.GetDoc(ctx, client.Collection(actorCollection).Doc(actorID))
	if err != nil {
		return services.Actor{}, err
	}

	var doc actorDocument
	if err := snap.DataTo(&doc); err != nil {
		return services.Actor{}, fmt.Errorf("directory adapter: decode %s: %w", snap.Ref.ID, err)
	}
	return services.Actor{
		ID:          snap.Ref.ID,
		DisplayName: doc.DisplayName,
		Role:        doc.Role,
	}, nil
}

type addressDocument struct {
	Label      string `firestore:"label,omitempty"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
	Phone      string `firestore:"phone,omitempty"`
}

type actorDocument struct {
	DisplayName string `firestore:"displayName,omitempty"`
	Role        string `firestore:"role,omitempty"`
}

var (
	_ services.ProductCatalog = (*CatalogAdapter)(nil)
	_ services.Directory      = (*DirectoryAdapter)(nil)
)
