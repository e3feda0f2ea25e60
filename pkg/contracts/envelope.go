// Package contracts holds the messages exchanged between Jobber services.
// Each exchange carries one closed set of message types; a body is decoded
// once into the matching Go type and consumers dispatch on it with a type
// switch.
package contracts

import (
	"encoding/json"
	"fmt"
	"strings"

	"jobber/pkg/messaging"
)

// Message is implemented by every decoded message.
type Message interface {
	MessageType() string
}

// discriminator returns the string stored under field in a JSON object.
// Anything that is not an object with a non-empty string there is malformed.
func discriminator(body []byte, field string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", malformed("%v", err)
	}
	if fields == nil {
		return "", malformed("body is not a JSON object")
	}

	raw, ok := fields[field]
	if !ok {
		return "", malformed("missing %q", field)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", malformed("%q is not a string", field)
	}
	if strings.TrimSpace(value) == "" {
		return "", malformed("empty %q", field)
	}
	return value, nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return malformed("%v", err)
	}
	return nil
}

// checkRequired reports the first empty value among name/value pairs.
func checkRequired(messageType string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return malformed("%s: missing %q", messageType, pairs[i])
		}
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", messaging.ErrMalformedMessage, fmt.Sprintf(format, args...))
}

func unknownType(exchange, messageType string) error {
	return fmt.Errorf("%w: %q on %s", messaging.ErrUnknownMessageType, messageType, exchange)
}
