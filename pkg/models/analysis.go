package models

// PriceEstimate is an optional price range attached to an analysis
type PriceEstimate struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// AnalysisReport is the model's analysis of one listing
type AnalysisReport struct {
	ID                   ListingID      `json:"id"`
	SummaryCZ            string         `json:"summary_cz,omitempty"`
	ProsCZ               []string       `json:"pros_cz"`
	ConsCZ               []string       `json:"cons_cz"`
	QuestionsForSellerCZ []string       `json:"questions_for_seller_cz"`
	FinalVerdictCZ       string         `json:"final_verdict_cz,omitempty"`
	PriceEstimate        *PriceEstimate `json:"price_estimate,omitempty"`
}

// InspectionReport is the Inspector output: a summary plus analyses ordered best first
type InspectionReport struct {
	SummaryMessage string           `json:"summary_message"`
	InspectedCars  []AnalysisReport `json:"inspected_cars"`
}

// AdAnalysis is the single-ad analyst output
type AdAnalysis struct {
	Pros               []string `json:"pros"`
	Cons               []string `json:"cons"`
	QuestionsForSeller []string `json:"questions_for_seller"`
	SummaryVerdict     string   `json:"summary_verdict"`
}

// PriceAppraisal is the appraiser output
type PriceAppraisal struct {
	EstimatedPriceMin int      `json:"estimated_price_min"`
	EstimatedPriceMax int      `json:"estimated_price_max"`
	AnalysisSummaryCZ string   `json:"analysis_summary_cz"`
	PositiveFactorsCZ []string `json:"positive_factors_cz"`
	NegativeFactorsCZ []string `json:"negative_factors_cz"`
	NegotiationTipsCZ []string `json:"negotiation_tips_cz"`
}
