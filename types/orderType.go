package types

type Side string

type OrderStatus string

const (
	OrderPending   OrderStatus = "ORDER_PENDING"
	OrderFilled    OrderStatus = "ORDER_FILLED"
	OrderCancelled OrderStatus = "ORDER_CANCELLED"

	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"
)

// Terminal reports whether no further transition can happen.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled
}
