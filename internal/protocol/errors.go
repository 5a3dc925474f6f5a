package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrNoScreen        = "E_NO_SCREEN"

	// Statistic management.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrInvalidKey   = "E_INVALID_KEY"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrNotFound     = "E_NOT_FOUND"
	ErrConflict     = "E_CONFLICT"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNoScreen:        {},
	ErrBadRequest:      {},
	ErrInvalidKey:      {},
	ErrNoPermission:    {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
