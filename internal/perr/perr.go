// Package perr defines the pipeline's flat error-kind enumeration and its
// mapping to HTTP status codes for stage exit codes and JSON error bodies.
package perr

import (
	"fmt"
	"net/http"
)

// Kind is a flat, numbered error kind grouped by domain band.
type Kind int

const (
	Success Kind = 0

	// 1-9: generic
	UnknownError Kind = 1
	NotImplemented Kind = 2
	NotSupported   Kind = 3
	InvalidArgument Kind = 4
	InvalidOperation Kind = 5
	Timeout          Kind = 6
	Canceled         Kind = 7

	// 50-59: protocol
	ProtocolViolation         Kind = 50
	ProtocolVersionMismatch   Kind = 51
	InvalidMessageFormat      Kind = 52

	// 60-69: filesystem
	FileNotFound     Kind = 60
	FileReadError    Kind = 61
	FileWriteError   Kind = 62
	UnsupportedFormat Kind = 63
	CorruptedFile    Kind = 64

	// 70-79: audio
	DeviceUnavailable        Kind = 70
	SampleRateNotSupported   Kind = 71
	ChannelConfigurationError Kind = 72
	BitDepthNotSupported     Kind = 73
	DeviceOpenFailed         Kind = 74
	AudioDecodeError         Kind = 75
	AudioEncodeError         Kind = 76
	AudioBackendError        Kind = 77
	AudioFormatMismatch      Kind = 78

	// 80-89: cache
	CacheMiss            Kind = 80
	CacheCorrupted       Kind = 81
	CacheEntryNotFound   Kind = 82
	CacheValidationError Kind = 83

	// 90-103: state/queue
	InvalidState        Kind = 90
	StateTransitionError Kind = 91
	QueueEmpty          Kind = 92
	QueueFull           Kind = 93
	EndOfQueue          Kind = 94

	// 104-109: resource
	OutOfMemory     Kind = 104
	BufferOverrun   Kind = 105
	BufferUnderrun  Kind = 106

	// 110-124: network
	NetworkUnavailable Kind = 110
	ConnectionTimeout  Kind = 111
	HTTPError          Kind = 112
)

var names = map[Kind]string{
	Success:                   "Success",
	UnknownError:              "UnknownError",
	NotImplemented:            "NotImplemented",
	NotSupported:              "NotSupported",
	InvalidArgument:           "InvalidArgument",
	InvalidOperation:          "InvalidOperation",
	Timeout:                   "Timeout",
	Canceled:                  "Canceled",
	ProtocolViolation:         "ProtocolViolation",
	ProtocolVersionMismatch:   "ProtocolVersionMismatch",
	InvalidMessageFormat:      "InvalidMessageFormat",
	FileNotFound:              "FileNotFound",
	FileReadError:             "FileReadError",
	FileWriteError:            "FileWriteError",
	UnsupportedFormat:         "UnsupportedFormat",
	CorruptedFile:             "CorruptedFile",
	DeviceUnavailable:         "DeviceUnavailable",
	SampleRateNotSupported:    "SampleRateNotSupported",
	ChannelConfigurationError: "ChannelConfigurationError",
	BitDepthNotSupported:      "BitDepthNotSupported",
	DeviceOpenFailed:          "DeviceOpenFailed",
	AudioDecodeError:          "AudioDecodeError",
	AudioEncodeError:          "AudioEncodeError",
	AudioBackendError:         "AudioBackendError",
	AudioFormatMismatch:       "AudioFormatMismatch",
	CacheMiss:                 "CacheMiss",
	CacheCorrupted:            "CacheCorrupted",
	CacheEntryNotFound:        "CacheEntryNotFound",
	CacheValidationError:      "CacheValidationError",
	InvalidState:              "InvalidState",
	StateTransitionError:      "StateTransitionError",
	QueueEmpty:                "QueueEmpty",
	QueueFull:                 "QueueFull",
	EndOfQueue:                "EndOfQueue",
	OutOfMemory:               "OutOfMemory",
	BufferOverrun:             "BufferOverrun",
	BufferUnderrun:            "BufferUnderrun",
	NetworkUnavailable:        "NetworkUnavailable",
	ConnectionTimeout:         "ConnectionTimeout",
	HTTPError:                 "HTTPError",
}

// String returns the diagnostic name of the kind.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "UnknownError"
}

// HTTPStatus maps a Kind to the HTTP status a programmatic caller should
// see. Also used as the stage process's exit code.
func (k Kind) HTTPStatus() int {
	switch k {
	case Success:
		return http.StatusOK
	case InvalidArgument:
		return http.StatusBadRequest
	case FileNotFound:
		return http.StatusNotFound
	case Timeout:
		return http.StatusRequestTimeout
	case DeviceUnavailable, NetworkUnavailable:
		return http.StatusServiceUnavailable
	case NotImplemented, NotSupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Error is the pipeline's typed error, carrying the Kind, the originating
// module/component name, and an optional wrapped cause.
type Error struct {
	Kind   Kind
	Module string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Module, e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Module, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with no wrapped cause.
func New(module string, kind Kind, detail string) *Error {
	return &Error{Kind: kind, Module: module, Detail: detail}
}

// Wrap creates an Error that wraps cause.
func Wrap(module string, kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Module: module, Detail: detail, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise returns UnknownError.
func KindOf(err error) Kind {
	var pe *Error
	for err != nil {
		if p, ok := err.(*Error); ok {
			pe = p
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if pe == nil {
		return UnknownError
	}
	return pe.Kind
}
