package model

// PinStatus pin-layer status of a file record
type PinStatus string

const (
	PinStatusQueued PinStatus = "queued" // Accepted, not yet on the pinning layer
	PinStatusPinned PinStatus = "pinned" // Content-addressed and retrievable by CID
	PinStatusFailed PinStatus = "failed" // Pinning attempt failed
)

// DurableStatus durable-layer status of a file record.
// Allowed transitions: queued -> uploading -> {completed, failed},
// failed -> uploading (retry). completed is terminal.
type DurableStatus string

const (
	DurableStatusQueued    DurableStatus = "queued"
	DurableStatusUploading DurableStatus = "uploading"
	DurableStatusCompleted DurableStatus = "completed"
	DurableStatusFailed    DurableStatus = "failed"
)

// DealPath records which deal construction path produced the stored piece
type DealPath string

const (
	DealPathPrimary DealPath = "primary" // Deal engine storage API
	DealPathDirect  DealPath = "direct"  // Locally derived piece, simplified proposal
)

// PaymentStatus status of a payment ledger entry
type PaymentStatus string

const (
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// CanTransition reports whether a durable status transition is legal.
func CanTransition(from, to DurableStatus) bool {
	switch from {
	case DurableStatusQueued:
		return to == DurableStatusUploading
	case DurableStatusUploading:
		return to == DurableStatusCompleted || to == DurableStatusFailed
	case DurableStatusFailed:
		return to == DurableStatusUploading
	case DurableStatusCompleted:
		return false
	}
	return false
}
