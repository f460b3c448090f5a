package domain

// StockStatus represents listing availability.
type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
)

// String returns the string representation of StockStatus.
func (s StockStatus) String() string {
	return string(s)
}

// IsValid checks if the stock status is a valid value.
func (s StockStatus) IsValid() bool {
	return s == StockInStock || s == StockOutOfStock
}
