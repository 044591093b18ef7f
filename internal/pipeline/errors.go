package pipeline

import "github.com/rotisserie/eris"

var (
	// ErrNoModels means the interpreter found no candidate models. It is an
	// empty result, not a failure: the pipeline answers with a no-results message.
	ErrNoModels = eris.New("interpreter returned no car models")

	// ErrMalformedStrategy means the interpreter output lacks the models or filters key
	ErrMalformedStrategy = eris.New("interpreter returned a malformed strategy")

	// ErrMissingListingID means an inspected car cannot be joined back to its listing
	ErrMissingListingID = eris.New("inspector result is missing a listing id")

	// ErrEmptyLLMResponse means the model answered with nothing usable
	ErrEmptyLLMResponse = eris.New("model returned an empty response")

	// ErrMalformedAnalysis means a single-ad analysis lacks its required fields
	ErrMalformedAnalysis = eris.New("model returned a malformed analysis")
)

// User-facing summary messages
const (
	MessageNoResults   = "Podle zadaných kritérií se nepodařilo najít žádné vozy. Zkuste prosím upravit svůj dotaz."
	MessageNoDetails   = "Bohužel se nepodařilo načíst podrobnosti pro nalezené vozy."
	MessageNoSuitable  = "Bohužel se nepodařilo najít žádné vhodné vozy."
	MessageMetaEmpty   = "Bohužel se nepodařilo najít žádné relevantní vozy."
	MessageMetaSummary = "Prohledal jsem portály: %s. Zde je celkové pořadí nejlepších nalezených vozů."
	MessageInspected   = "Vybral jsem nejlepší nabídky odpovídající vašemu dotazu."

	defaultSellerName = "Soukromý prodejce"
)
