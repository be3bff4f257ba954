package domain

import "time"

// Order заказ. Набор полей нужен только как полезная нагрузка хранилища.
type Order struct {
	ID          int64     `json:"id" bson:"_id"`
	CustomerID  string    `json:"customer_id" bson:"customer_id"`
	Status      string    `json:"status" bson:"status"`
	Currency    string    `json:"currency" bson:"currency"`
	AmountMinor int64     `json:"amount_minor" bson:"amount_minor"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

func (o Order) EntityID() int64 { return o.ID }

func (o Order) WithEntityID(id int64) Order {
	o.ID = id
	return o
}

func (o Order) WithStoredTimes(precision time.Duration) Order {
	o.CreatedAt = StoredTime(o.CreatedAt, precision)
	o.UpdatedAt = StoredTime(o.UpdatedAt, precision)
	return o
}
