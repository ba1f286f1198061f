package models

import "time"

type ConsumedPart struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type InventoryConsumptionRecord struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	OrderID   int64     `json:"order_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
