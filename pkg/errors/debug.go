package errors

import stdErrors "errors"

// ErrorDump captures the unwrapped chain of an error for structured logging.
type ErrorDump struct {
	TopMessage string
	Code       string
	Chain      []string
}

// Dump walks the error chain and collects each message for log output.
func Dump(err error) ErrorDump {
	dump := ErrorDump{}
	if err == nil {
		return dump
	}
	dump.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		dump.Code = string(typed.Code())
	}
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		dump.Chain = append(dump.Chain, cur.Error())
	}
	return dump
}
