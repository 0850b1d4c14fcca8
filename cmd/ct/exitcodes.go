package main

// Exit codes for the tool-facing operation surface.
const (
	ExitSuccess        = 0 // Success
	ExitError          = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError    = 2 // Configuration error (no workspace, bad config)
	ExitRejected       = 3 // Validation or data rejection (bad identifier, gate failure)
	ExitIntegrityError = 4 // Integrity violations found by check
)
