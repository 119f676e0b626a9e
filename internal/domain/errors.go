package domain

import (
	"errors"
	"regexp"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidVote        = errors.New("invalid vote")
	ErrInvalidSecret      = errors.New("invalid secret")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSecretRequired     = errors.New("no stored secret for this market")
	ErrTxPending          = errors.New("a transaction is already pending")
	ErrTxReverted         = errors.New("transaction reverted")
	ErrContractRejected   = errors.New("rejected by contract")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNoWallet           = errors.New("no wallet configured")
	ErrLockHeld           = errors.New("lock held by another process")
)

// ContractErrorTag names one of the contract's custom errors.
type ContractErrorTag string

const (
	TagInvalidTimeParameters  ContractErrorTag = "InvalidTimeParameters"
	TagMarketNotInCommitPhase ContractErrorTag = "MarketNotInCommitPhase"
	TagMarketNotInRevealPhase ContractErrorTag = "MarketNotInRevealPhase"
	TagAlreadyCommitted       ContractErrorTag = "AlreadyCommitted"
	TagNotCommitted           ContractErrorTag = "NotCommitted"
	TagAlreadyRevealed        ContractErrorTag = "AlreadyRevealed"
	TagInvalidReveal          ContractErrorTag = "InvalidReveal"
	TagOnlyCreator            ContractErrorTag = "OnlyCreator"
	TagMarketNotResolved      ContractErrorTag = "MarketNotResolved"
	TagMarketAlreadyResolved  ContractErrorTag = "MarketAlreadyResolved"
	TagCommitPhaseNotEnded    ContractErrorTag = "CommitPhaseNotEnded"
	TagRevealPhaseNotEnded    ContractErrorTag = "RevealPhaseNotEnded"
)

// ErrorMessages maps contract error tags to the text shown to users.
var ErrorMessages = map[ContractErrorTag]string{
	TagInvalidTimeParameters:  "Durations must be > 0.",
	TagMarketNotInCommitPhase: "Action not allowed in this phase.",
	TagMarketNotInRevealPhase: "Action not allowed in this phase.",
	TagAlreadyCommitted:       "You already committed.",
	TagNotCommitted:           "You didn't commit in time.",
	TagAlreadyRevealed:        "You already revealed.",
	TagInvalidReveal:          "Vote or salt doesn't match your commitment.",
	TagOnlyCreator:            "Only the market creator can view or perform this action.",
	TagMarketNotResolved:      "You can resolve only after reveal window ends.",
	TagMarketAlreadyResolved:  "Market already resolved.",
	TagCommitPhaseNotEnded:    "Phase hasn't ended yet.",
	TagRevealPhaseNotEnded:    "Phase hasn't ended yet.",
}

// Known reports whether t is part of the contract's error taxonomy.
func (t ContractErrorTag) Known() bool {
	_, ok := ErrorMessages[t]
	return ok
}

// Tagged is implemented by errors that carry a contract error tag.
type Tagged interface {
	ErrorTag() ContractErrorTag
}

var tagPattern = regexp.MustCompile(`(\w+)\(`)

// ErrorTag extracts the contract error tag from err. Errors implementing
// Tagged win; otherwise the first known "Name(" occurrence in the message is
// used.
func ErrorTag(err error) (ContractErrorTag, bool) {
	if err == nil {
		return "", false
	}
	var t Tagged
	if errors.As(err, &t) {
		if tag := t.ErrorTag(); tag.Known() {
			return tag, true
		}
	}
	for _, m := range tagPattern.FindAllStringSubmatch(err.Error(), -1) {
		if tag := ContractErrorTag(m[1]); tag.Known() {
			return tag, true
		}
	}
	return "", false
}

// HumanMessage renders err for display. Tagged contract errors map through
// ErrorMessages, local validation errors show their own text, and anything
// else gets fallback.
func HumanMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if tag, ok := ErrorTag(err); ok {
		return ErrorMessages[tag]
	}
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Message
	}
	switch {
	case errors.Is(err, ErrTxPending):
		return "A transaction is already pending."
	case errors.Is(err, ErrSecretRequired):
		return "No saved secret for this market. Enter your vote and secret manually."
	case errors.Is(err, ErrInvalidSecret):
		return "Secret must be 0x followed by 64 hex characters."
	case errors.Is(err, ErrInvalidVote):
		return "Choose YES or NO."
	case errors.Is(err, ErrNoWallet):
		return "Connect a wallet first."
	}
	return fallback
}

// InputError is a local validation failure, rejected before any network call.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }

// Is lets callers match input errors with errors.Is(err, ErrInvalidInput).
func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }
