package gateway

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

func gatewayError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// untrustedSender never carries stream details; the payload has not been
// looked at when it is produced.
func untrustedSender(domainID uint32, address string) error {
	return gatewayError(
		core.ErrUntrustedSender,
		goerrors.CategoryAuth,
		"gateway: untrusted sender",
		http.StatusUnauthorized,
		core.ErrorUntrustedSender,
		map[string]any{"source_domain_id": domainID, "source_address": address},
	)
}

func noTrustedPeer(domainID uint32) error {
	return gatewayError(
		core.ErrNoTrustedPeer,
		goerrors.CategoryNotFound,
		"gateway: no trusted peer configured",
		http.StatusNotFound,
		core.ErrorNoTrustedPeer,
		map[string]any{"domain_id": domainID},
	)
}

func notAdministrator(caller string) error {
	return gatewayError(
		core.ErrNotAdministrator,
		goerrors.CategoryAuthz,
		"gateway: caller is not the administrator",
		http.StatusForbidden,
		core.ErrorNotAdministrator,
		map[string]any{"caller": caller},
	)
}

func malformedPayload(source error, domainID uint32) error {
	return gatewayError(
		source,
		goerrors.CategoryBadInput,
		"gateway: malformed payload",
		http.StatusBadRequest,
		core.ErrorMalformedPayload,
		map[string]any{"source_domain_id": domainID},
	)
}

func duplicateMessage(domainID uint32, nonce uint64) error {
	return gatewayError(
		core.ErrDuplicateMessage,
		goerrors.CategoryConflict,
		"gateway: message already processed",
		http.StatusConflict,
		core.ErrorDuplicateMessage,
		map[string]any{"source_domain_id": domainID, "nonce": nonce},
	)
}

func gatewayBadInput(message string, metadata map[string]any) error {
	return gatewayError(nil, goerrors.CategoryBadInput, message, http.StatusBadRequest, core.ErrorBadInput, metadata)
}

func gatewayInternal(source error, message string, metadata map[string]any) error {
	return gatewayError(source, goerrors.CategoryInternal, message, http.StatusInternalServerError, core.ErrorInternal, metadata)
}

func endpointDispatchFailed(source error, domainID uint32) error {
	return gatewayError(
		source,
		goerrors.CategoryExternal,
		"gateway: endpoint rejected message",
		http.StatusBadGateway,
		core.ErrorEndpointDispatchFailed,
		map[string]any{"destination_domain_id": domainID},
	)
}
