package cloud

import "fmt"

// Status is the outcome of a cloud load.
type Status int

const (
	StatusUnknownError Status = iota
	StatusOK
	StatusKeyNotFound
	StatusNetworkErrorNoData
	StatusNetworkErrorStaleData
	StatusReconnectRequired
	// StatusDecodeFailed means the load returned bytes that are not valid
	// UTF-8. The engine receives no text for it.
	StatusDecodeFailed
)

// Host status codes for app-state loads.
const (
	CodeOK                    = 0
	CodeReconnectRequired     = 2
	CodeNetworkErrorStaleData = 3
	CodeNetworkErrorNoData    = 4
	CodeKeyNotFound           = 2002
)

var statusByCode = map[int]Status{
	CodeOK:                    StatusOK,
	CodeKeyNotFound:           StatusKeyNotFound,
	CodeNetworkErrorNoData:    StatusNetworkErrorNoData,
	CodeNetworkErrorStaleData: StatusNetworkErrorStaleData,
	CodeReconnectRequired:     StatusReconnectRequired,
}

// StatusFromCode maps a host status code. Unmapped codes are UnknownError.
func StatusFromCode(code int) Status {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return StatusUnknownError
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusKeyNotFound:
		return "key_not_found"
	case StatusNetworkErrorNoData:
		return "network_error_no_data"
	case StatusNetworkErrorStaleData:
		return "network_error_stale_data"
	case StatusReconnectRequired:
		return "reconnect_required"
	case StatusUnknownError:
		return "unknown_error"
	case StatusDecodeFailed:
		return "decode_failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
