package models

// IngestStatus is the outcome of submitting one observation.
type IngestStatus string

const (
	IngestAccepted     IngestStatus = "accepted"
	IngestDeduplicated IngestStatus = "deduplicated"
	IngestRejected     IngestStatus = "rejected"
)

// IngestReceipt acknowledges an observation submitted by the scraping
// collaborator. Reason is set only for rejections.
type IngestReceipt struct {
	ID     string       `json:"id"`
	Status IngestStatus `json:"status"`
	Seq    int64        `json:"seq,omitempty"`
	Reason string       `json:"reason,omitempty"`
}
