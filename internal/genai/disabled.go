package genai

import "context"

// Disabled is a no-op Client used when no API credentials are configured.
// Every method fails with ErrDisabled so callers can degrade explicitly
// instead of checking for nil clients.
type Disabled struct{}

var _ Client = Disabled{}

func (Disabled) Generate(context.Context, GenerateRequest) (string, error) {
	return "", ErrDisabled
}

func (Disabled) GenerateStream(context.Context, GenerateRequest, StreamCallback) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Complete(context.Context, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrDisabled
}
