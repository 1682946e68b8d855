package core

import (
	"context"
	"fmt"
)

// EchoResponder acknowledges the message without generating a reply.
type EchoResponder struct{}

func (EchoResponder) Reply(_ context.Context, persona, message string) (string, error) {
	return fmt.Sprintf("I received your message: \"%s\". I am %s. (Backend is working!)", message, persona), nil
}
