package types

// CompletionRequest is a single-turn prompt sent to a provider
type CompletionRequest struct {
	// Stage names the pipeline step issuing the call, used for logging only
	Stage     string
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}
