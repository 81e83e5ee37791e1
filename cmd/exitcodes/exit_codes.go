package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================

	// ExitCodeHandledError indicates an error occurred which was already reported to the user, so it should not be
	// printed again.
	ExitCodeHandledError = 2

	// ExitCodeRunnerError indicates that the test runner hit an environment fault. Note that an error with
	// error code ExitCodeGeneralError and ExitCodeRunnerError are mutually exclusive errors
	ExitCodeRunnerError = 6

	// ExitCodeTestFailed indicates a test had failed.
	ExitCodeTestFailed = 7
)
