// Package errors provides coded domain errors for the narrator.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Malformed tool input
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeInvalidDiceExpression Code = "INVALID_DICE_EXPRESSION"
	CodeUnknownMonster        Code = "UNKNOWN_MONSTER"
	CodeUnknownRace           Code = "UNKNOWN_RACE"
	CodeUnknownClass          Code = "UNKNOWN_CLASS"
	CodeUnknownTool           Code = "UNKNOWN_TOOL"

	// Character records
	CodePlayerNotFound Code = "PLAYER_NOT_FOUND"
	CodePlayerExists   Code = "PLAYER_EXISTS"

	// Infrastructure
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeUpstreamFailed    Code = "UPSTREAM_FAILED"
)

// Recoverable reports whether the code describes a condition the model can
// be told about and keep narrating around. Other codes abort the turn.
func (c Code) Recoverable() bool {
	switch c {
	case CodeInvalidArgument,
		CodeInvalidDiceExpression,
		CodeUnknownMonster,
		CodeUnknownRace,
		CodeUnknownClass,
		CodeUnknownTool,
		CodePlayerNotFound,
		CodePlayerExists:
		return true
	default:
		return false
	}
}
