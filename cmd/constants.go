package cmd

// DefaultProjectConfigFilename describes the default config filename for a given project folder.
const DefaultProjectConfigFilename = "contest.json"

// DefaultLogFilename describes the name of the structured log file written to the configured log directory.
const DefaultLogFilename = "contest.log"
