package ir

// Version constants for the IR schema and engine.
const (
	// IRVersion is the scene and trace schema version.
	IRVersion = "1"

	// EngineVersion is the xpbd engine version.
	EngineVersion = "0.1.0"
)
