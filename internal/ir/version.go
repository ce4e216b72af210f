package ir

// Version constants for the expression encoding and the tool.
const (
	// FormatVersion is the canonical expression encoding version.
	FormatVersion = "1"

	// ToolVersion is the mdtsql version.
	ToolVersion = "0.1.0"
)
