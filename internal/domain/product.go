package domain

import "time"

// Product товар каталога.
type Product struct {
	ID          int64     `json:"id" bson:"_id"`
	SKU         string    `json:"sku" bson:"sku"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Currency    string    `json:"currency" bson:"currency"`
	PriceMinor  int64     `json:"price_minor" bson:"price_minor"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

func (p Product) EntityID() int64 { return p.ID }

func (p Product) WithEntityID(id int64) Product {
	p.ID = id
	return p
}

func (p Product) WithStoredTimes(precision time.Duration) Product {
	p.CreatedAt = StoredTime(p.CreatedAt, precision)
	p.UpdatedAt = StoredTime(p.UpdatedAt, precision)
	return p
}
