// Package surface draws dashboard frames on the terminal and reports key
// presses and resizes back to the controller.
//
// Two backends are available: "tea" runs a Bubble Tea program that the
// controller feeds frames through program.Send, and "tcell" paints cells
// directly on a tcell screen.
package surface

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/pipetop/internal/dashboard"
	"golang.org/x/term"
)

// Renderer names.
const (
	RendererTea   = "tea"
	RendererTcell = "tcell"
)

// Renderers lists the valid renderer names.
var Renderers = []string{RendererTea, RendererTcell}

// ErrNotTerminal is returned by Start when stdout is not a terminal.
var ErrNotTerminal = errors.New("stdout is not a terminal")

// inputBuffer is the capacity of a surface's input channel.
const inputBuffer = 32

// Options configures a surface.
type Options struct {
	// NoColor renders without colors.
	NoColor bool
	// Input and Output replace stdin/stdout for the tea backend. When Output
	// is nil the terminal check applies.
	Input  io.Reader
	Output io.Writer
}

// New returns the backend named renderer.
func New(renderer string, opts Options) (dashboard.Surface, error) {
	if opts.NoColor {
		DisableColor()
	}
	switch renderer {
	case RendererTea, "":
		return NewTea(opts), nil
	case RendererTcell:
		return NewTcell(opts), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", renderer)
	}
}

// checkTerminal fails unless stdout is a terminal.
func checkTerminal() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}
	return nil
}
