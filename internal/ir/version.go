package ir

// EngineVersion is the geochunk release reported by the CLI.
const EngineVersion = "0.1.0"
