package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func trustedPeerHandlers() repository.ModelHandlers[*trustedPeerRecord] {
	return repository.ModelHandlers[*trustedPeerRecord]{
		NewRecord: func() *trustedPeerRecord {
			return &trustedPeerRecord{}
		},
		GetID: func(record *trustedPeerRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *trustedPeerRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *trustedPeerRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func withdrawalHandlers() repository.ModelHandlers[*withdrawalRecord] {
	return repository.ModelHandlers[*withdrawalRecord]{
		NewRecord: func() *withdrawalRecord {
			return &withdrawalRecord{}
		},
		GetID: func(record *withdrawalRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *withdrawalRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *withdrawalRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
