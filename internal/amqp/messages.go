package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
	"ledger/internal/pipeline"
)

// Message types carried in the type field.
const (
	TypeRunCompleted  = "run.completed"
	TypeReviewRequest = "review.request"
)

// CompositionSummary is one composition row with amounts in dollars.
type CompositionSummary struct {
	Year      int     `json:"year"`
	Public    float64 `json:"public_total"`
	NonProfit float64 `json:"non_profit_total"`
	ForProfit float64 `json:"for_profit_total"`
	Unknown   float64 `json:"unknown_total"`
}

// RunCompletedMessage announces a finished pipeline run to downstream
// consumers. The full tables live in the exported datasets.
type RunCompletedMessage struct {
	Type              string               `json:"type"`
	RunID             string               `json:"run_id"`
	StartedAt         time.Time            `json:"started_at"`
	FinishedAt        time.Time            `json:"finished_at"`
	Payments          int                  `json:"payments"`
	VendorsObserved   int                  `json:"vendors_observed"`
	VendorsCreated    int                  `json:"vendors_created"`
	Classified        int                  `json:"classified"`
	Corrected         int                  `json:"corrected"`
	CorrectionsByKind map[string]int       `json:"corrections_by_kind,omitempty"`
	VendorsByType     map[string]int       `json:"vendors_by_type"`
	Composition       []CompositionSummary `json:"composition"`
}

// ReviewVendor is one entry of a review request.
type ReviewVendor struct {
	VendorID   string  `json:"vendor_id"`
	Name       string  `json:"vendor_name_normalized"`
	Confidence string  `json:"confidence"`
	Signal     string  `json:"signal"`
	Evidence   string  `json:"evidence_note"`
	TotalPaid  float64 `json:"total_paid_all_years"`
}

// ReviewRequestMessage asks reviewers to classify the listed vendors.
type ReviewRequestMessage struct {
	Type      string         `json:"type"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Vendors   []ReviewVendor `json:"vendors"`
}

// NewRunCompletedMessage summarizes res.
func NewRunCompletedMessage(res *pipeline.Result, finishedAt time.Time) *RunCompletedMessage {
	msg := &RunCompletedMessage{
		Type:              TypeRunCompleted,
		RunID:             res.RunID,
		StartedAt:         res.StartedAt,
		FinishedAt:        finishedAt,
		Payments:          res.Stats.Payments,
		VendorsObserved:   res.Stats.VendorsObserved,
		VendorsCreated:    res.Stats.VendorsCreated,
		Classified:        res.Stats.Classified,
		Corrected:         res.Stats.Corrected,
		CorrectionsByKind: res.Stats.CorrectionsByKind,
		VendorsByType:     make(map[string]int, len(res.Stats.VendorsByType)),
	}
	for t, n := range res.Stats.VendorsByType {
		msg.VendorsByType[string(t)] = n
	}
	if res.Aggregate != nil {
		for _, row := range res.Aggregate.Composition {
			msg.Composition = append(msg.Composition, CompositionSummary{
				Year:      row.Year,
				Public:    row.Public.Dollars(),
				NonProfit: row.NonProfit.Dollars(),
				ForProfit: row.ForProfit.Dollars(),
				Unknown:   row.Unknown.Dollars(),
			})
		}
	}
	return msg
}

// NewReviewRequestMessage wraps a review queue.
func NewReviewRequestMessage(runID string, items []core.ReviewItem) *ReviewRequestMessage {
	msg := &ReviewRequestMessage{
		Type:      TypeReviewRequest,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Vendors:   make([]ReviewVendor, 0, len(items)),
	}
	for _, it := range items {
		msg.Vendors = append(msg.Vendors, ReviewVendor{
			VendorID:   it.VendorID,
			Name:       it.Name,
			Confidence: string(it.Confidence),
			Signal:     it.Signal,
			Evidence:   it.Evidence,
			TotalPaid:  it.TotalPaid.Dollars(),
		})
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunCompletedMessageFromJSON creates a message from JSON bytes
func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToJSON converts the message to JSON bytes
func (m *ReviewRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
