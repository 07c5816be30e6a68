package build

// ModuleVersion is the module-version byte prefixed onto every persisted
// and on-the-wire encoded value (spec §6, "Wire encoding"). Bumping this
// lets newer guardians recognize payloads written by older ones and fall
// back to the Unknown variant instead of misinterpreting bytes.
const ModuleVersion uint8 = 1

// rawVersion is the human-readable daemon version reported over the API
// and in logs.
const rawVersion = "v0.1.0"

// Version is the current stabilitypool daemon version string.
var Version = rawVersion
