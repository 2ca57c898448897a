package provider

// ModelType names a kind of request a provider can serve. Each ModelType
// is handled by exactly one Fetcher.
type ModelType string

const (
	// ModelCryptoQuote is the latest quote for one or more symbols.
	ModelCryptoQuote ModelType = "CryptoQuote"
	// ModelCryptoListing is the market-cap ordered listing of all tokens.
	ModelCryptoListing ModelType = "CryptoListing"
	// ModelKeyInfo reports API key usage and validity.
	ModelKeyInfo ModelType = "KeyInfo"
)
