package checkout

const (
	TopicOrderPlaced     = "buildora.order.placed"
	TopicOrderDispatched = "buildora.order.dispatched"
	TopicOrderDelivered  = "buildora.order.delivered"
	TopicStockLow        = "buildora.stock.low"
)

// Partition key = order_id so every event of one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
