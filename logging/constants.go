package logging

// These constants are used to identify the various services that may do some logging. They are attached to
// sub-loggers under the "module" key.
const (
	// RUNNER_SERVICE identifies the test runner (setup, unit, fuzz and invariant execution)
	RUNNER_SERVICE = "runner"
	// CHAIN_SERVICE identifies the in-memory execution environment
	CHAIN_SERVICE = "chain"
	// COMPILATION_SERVICE identifies artifact loading
	COMPILATION_SERVICE = "compilation"
	// CORPUS_SERVICE identifies the failure persistence store
	CORPUS_SERVICE = "corpus"
	// CLI_SERVICE identifies the cmd package
	CLI_SERVICE = "cli"
)
