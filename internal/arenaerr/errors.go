package arenaerr

import errorsmod "cosmossdk.io/errors"

const codespace = "arena"

// Core sentinel errors. Callers wrap these with context; boundaries switch on
// them with errors.Is.
var (
	ErrInvalidArgument    = errorsmod.Register(codespace, 1, "invalid argument")
	ErrInsufficientAgents = errorsmod.Register(codespace, 2, "insufficient agents")
	ErrLedgerFailure      = errorsmod.Register(codespace, 3, "ledger failure")
	ErrEngineFault        = errorsmod.Register(codespace, 4, "engine fault")
	ErrSessionNotFound    = errorsmod.Register(codespace, 5, "session not found")
	ErrTimeout            = errorsmod.Register(codespace, 6, "timeout")
	ErrUnavailable        = errorsmod.Register(codespace, 7, "temporarily unavailable")
)
