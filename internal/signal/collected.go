package signal

// Collected is one decoded signal sample produced by the CAN decoder
// and fed into the inspection engine's history.
type Collected struct {
	ID        ID
	Timestamp Timestamp
	Value     Value
	Type      Type
}
