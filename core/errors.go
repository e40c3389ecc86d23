package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidDuration        = "VESTING_INVALID_DURATION"
	ErrorDepositTooLow          = "VESTING_DEPOSIT_TOO_LOW"
	ErrorStartTimePassed        = "VESTING_START_TIME_PASSED"
	ErrorContractCantBeUser     = "VESTING_CONTRACT_CANT_BE_USER"
	ErrorStreamNotFound         = "VESTING_STREAM_NOT_FOUND"
	ErrorNotYourStream          = "VESTING_NOT_YOUR_STREAM"
	ErrorAmountExceedsBalance   = "VESTING_AMOUNT_EXCEEDS_BALANCE"
	ErrorInvalidAmount          = "VESTING_INVALID_AMOUNT"
	ErrorUntrustedSender        = "VESTING_UNTRUSTED_SENDER"
	ErrorNoTrustedPeer          = "VESTING_NO_TRUSTED_PEER"
	ErrorNotAdministrator       = "VESTING_NOT_ADMINISTRATOR"
	ErrorMalformedPayload       = "VESTING_MALFORMED_PAYLOAD"
	ErrorDuplicateMessage       = "VESTING_DUPLICATE_MESSAGE"
	ErrorTokenTransferFailed    = "VESTING_TOKEN_TRANSFER_FAILED"
	ErrorEndpointDispatchFailed = "VESTING_ENDPOINT_DISPATCH_FAILED"
	ErrorStaleBalance           = "VESTING_STALE_BALANCE"
	ErrorBadInput               = "VESTING_BAD_INPUT"
	ErrorInternal               = "VESTING_INTERNAL_ERROR"
)

var (
	ErrInvalidDuration      = errors.New("core: invalid duration")
	ErrDepositAmountTooLow  = errors.New("core: deposit amount too low")
	ErrStartTimePassed      = errors.New("core: start time passed")
	ErrContractCantBeUser   = errors.New("core: contract can't be user")
	ErrStreamNotFound       = errors.New("core: stream doesn't exist")
	ErrNotYourStream        = errors.New("core: not your stream")
	ErrAmountExceedsBalance = errors.New("core: amount exceeds balance")
	ErrInvalidAmount        = errors.New("core: invalid amount")
	ErrUntrustedSender      = errors.New("core: untrusted sender")
	ErrNoTrustedPeer        = errors.New("core: no trusted peer configured")
	ErrNotAdministrator     = errors.New("core: caller is not the administrator")
	ErrMalformedPayload     = errors.New("core: malformed message payload")
	ErrDuplicateMessage     = errors.New("core: duplicate message")
	ErrTokenTransferFailed  = errors.New("core: token transfer failed")
	ErrEndpointDispatch     = errors.New("core: endpoint dispatch failed")
	ErrTrustedPeerNotFound  = errors.New("core: trusted peer not found")
	ErrStaleBalance         = errors.New("core: stream balance changed concurrently")
)

type errorKind struct {
	sentinel error
	category goerrors.Category
	textCode string
}

var errorKinds = []errorKind{
	{ErrInvalidDuration, goerrors.CategoryBadInput, ErrorInvalidDuration},
	{ErrDepositAmountTooLow, goerrors.CategoryBadInput, ErrorDepositTooLow},
	{ErrStartTimePassed, goerrors.CategoryBadInput, ErrorStartTimePassed},
	{ErrContractCantBeUser, goerrors.CategoryBadInput, ErrorContractCantBeUser},
	{ErrStreamNotFound, goerrors.CategoryNotFound, ErrorStreamNotFound},
	{ErrNotYourStream, goerrors.CategoryAuthz, ErrorNotYourStream},
	{ErrAmountExceedsBalance, goerrors.CategoryBadInput, ErrorAmountExceedsBalance},
	{ErrInvalidAmount, goerrors.CategoryBadInput, ErrorInvalidAmount},
	{ErrUntrustedSender, goerrors.CategoryAuth, ErrorUntrustedSender},
	{ErrNoTrustedPeer, goerrors.CategoryNotFound, ErrorNoTrustedPeer},
	{ErrTrustedPeerNotFound, goerrors.CategoryNotFound, ErrorNoTrustedPeer},
	{ErrNotAdministrator, goerrors.CategoryAuthz, ErrorNotAdministrator},
	{ErrMalformedPayload, goerrors.CategoryBadInput, ErrorMalformedPayload},
	{ErrDuplicateMessage, goerrors.CategoryConflict, ErrorDuplicateMessage},
	{ErrStaleBalance, goerrors.CategoryConflict, ErrorStaleBalance},
	{ErrTokenTransferFailed, goerrors.CategoryExternal, ErrorTokenTransferFailed},
	{ErrEndpointDispatch, goerrors.CategoryExternal, ErrorEndpointDispatchFailed},
}

// MapError converts ledger and gateway failures into the go-errors
// envelope. The source error stays attached so errors.Is keeps working
// on the sentinel.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	for _, kind := range errorKinds {
		if errors.Is(err, kind.sentinel) {
			return ensureErrorEnvelope(
				goerrors.Wrap(err, kind.category, err.Error()).
					WithTextCode(kind.textCode),
			)
		}
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

// TextCode returns the envelope text code carried by err, or "".
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorStreamNotFound
	case goerrors.CategoryAuth:
		return ErrorUntrustedSender
	case goerrors.CategoryAuthz:
		return ErrorNotYourStream
	case goerrors.CategoryConflict:
		return ErrorDuplicateMessage
	case goerrors.CategoryExternal:
		return ErrorTokenTransferFailed
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
