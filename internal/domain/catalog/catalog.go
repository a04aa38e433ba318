package catalog

import "strconv"

// Catalog is the in-memory product list. Product IDs are 1-based row
// positions rendered as decimal strings, the same IDs the index stores.
type Catalog struct {
	products []Product
}

// New wraps products in load order.
func New(products []Product) *Catalog {
	return &Catalog{products: products}
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Products returns all products in load order.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	return c.products
}

// Get looks up a product by its index ID.
func (c *Catalog) Get(id string) (*Product, bool) {
	if c == nil {
		return nil, false
	}
	n, err := strconv.Atoi(id)
	if err != nil || n < 1 || n > len(c.products) {
		return nil, false
	}
	return &c.products[n-1], true
}

// ID returns the index ID of the product at zero-based position i.
func ID(i int) string {
	return strconv.Itoa(i + 1)
}
