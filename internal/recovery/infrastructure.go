package recovery

import (
	"fmt"
	"log/slog"
)

// ResponseHandlerRecoveryCallback defines the callback signature for response handler recovery.
// The main application provides the implementation, keeping messaging out of this package.
type ResponseHandlerRecoveryCallback func(ResponseHandlerRecoveryInfo) error

// CreateResponseHandlerRecoveryHandler returns a handler that logs and delegates to callback.
func CreateResponseHandlerRecoveryHandler(callback ResponseHandlerRecoveryCallback) func(ResponseHandlerRecoveryInfo) error {
	return func(info ResponseHandlerRecoveryInfo) error {
		slog.Debug("recovery.ResponseHandler: recovering hook",
			"participant", info.Participant,
			"session", info.SessionID,
			"channel", info.Channel)

		if callback == nil {
			return fmt.Errorf("no response handler recovery callback provided")
		}
		return callback(info)
	}
}
