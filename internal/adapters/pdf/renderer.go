// Package pdf turns rendered report HTML into PDF bytes.
package pdf

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no PDF engine can be started.
var ErrUnavailable = errors.New("pdf renderer unavailable")

// Renderer prints an HTML document to PDF.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// Disabled is a Renderer for deployments without a browser. Every call
// fails with ErrUnavailable.
type Disabled struct{}

// Render always returns ErrUnavailable.
func (Disabled) Render(context.Context, string) ([]byte, error) {
	return nil, ErrUnavailable
}
