package models

import "time"

// InspectedCar is one finalist in the FinalResponse: original listing fields joined
// with the model's analysis.
type InspectedCar struct {
	ID                   ListingID      `json:"id"`
	Source               string         `json:"source"`
	Title                string         `json:"title"`
	URL                  string         `json:"url"`
	Price                string         `json:"price"`
	Images               []string       `json:"images"`
	VIN                  *string        `json:"vin"`
	SellerInfo           SellerInfo     `json:"seller_info"`
	Score                *int           `json:"score,omitempty"`
	SummaryCZ            string         `json:"summary_cz,omitempty"`
	ProsCZ               []string       `json:"pros_cz"`
	ConsCZ               []string       `json:"cons_cz"`
	QuestionsForSellerCZ []string       `json:"questions_for_seller_cz"`
	FinalVerdictCZ       string         `json:"final_verdict_cz,omitempty"`
	PriceEstimate        *PriceEstimate `json:"price_estimate,omitempty"`
}

// PipelineStats summarizes how many records each stage handled
type PipelineStats struct {
	Collected     int    `json:"collected"`
	Fetched       int    `json:"fetched"`
	Ranked        int    `json:"ranked"`
	Inspected     int    `json:"inspected"`
	RankerApplied bool   `json:"ranker_applied"`
	Duration      string `json:"duration,omitempty"`
}

// FinalResponse is returned by every pipeline endpoint
type FinalResponse struct {
	SummaryMessage string         `json:"summary_message"`
	InspectedCars  []InspectedCar `json:"inspected_cars"`
	Platforms      []string       `json:"platforms,omitempty"`
	Stats          *PipelineStats `json:"stats,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
}

// AdAnalysisResponse is returned by the single-ad analyst endpoint
type AdAnalysisResponse struct {
	VehicleDetailsWidget map[string]string `json:"vehicle_details_widget"`
	AIAnalysis           *AdAnalysis       `json:"ai_analysis"`
	OriginalAd           OriginalAd        `json:"original_ad"`
	RequestID            string            `json:"request_id,omitempty"`
}

// AppraisalResponse is returned by the appraiser endpoint
type AppraisalResponse struct {
	Appraisal  *PriceAppraisal `json:"appraisal"`
	OriginalAd OriginalAd      `json:"original_ad"`
	RequestID  string          `json:"request_id,omitempty"`
}

// OriginalAd identifies the analyzed ad in single-ad responses
type OriginalAd struct {
	Title  string   `json:"title,omitempty"`
	URL    string   `json:"url"`
	Price  string   `json:"price,omitempty"`
	Images []string `json:"images"`
}

// AdDetailsResponse is returned by the details endpoint
type AdDetailsResponse struct {
	AdDetails *ListingDetail `json:"ad_details"`
	RequestID string         `json:"request_id,omitempty"`
}

// CollectResponse is returned by the collector endpoint
type CollectResponse struct {
	Listings  []ListingSummary `json:"listings"`
	Total     int              `json:"total"`
	Empty     bool             `json:"empty"`
	RequestID string           `json:"request_id,omitempty"`
}

// CreditsResponse is returned by the credits endpoint
type CreditsResponse struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
