package main

// Exit codes shared by all rtk commands.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error, including paper or path not found
	ExitConfigError = 2 // Configuration error (no repository, invalid config)
	ExitAPIError    = 3 // Semantic Scholar API error (auth, rate limit, network)
	ExitPartialRun  = 4 // Ingestion finished incomplete (timeout or abort)
)
