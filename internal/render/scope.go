package render

import (
	"errors"
	"fmt"
)

// WithAttrib pushes the attribute groups in mask, runs fn and always pops
// them again, so callers cannot leak state into unrelated draw stages.
func WithAttrib(g Graphics, mask AttribMask, fn func() error) error {
	if err := g.PushAttrib(mask); err != nil {
		return fmt.Errorf("push attrib: %w", err)
	}
	err := fn()
	if popErr := g.PopAttrib(); popErr != nil {
		err = errors.Join(err, fmt.Errorf("pop attrib: %w", popErr))
	}
	return err
}

// WithMatrices saves both matrix stacks around fn. Identity is loaded into
// each saved stack before fn runs.
func WithMatrices(g Graphics, fn func() error) error {
	pushed := make([]MatrixMode, 0, 2)
	var err error
	for _, mode := range []MatrixMode{ModelView, Projection} {
		if err = g.PushMatrix(mode); err != nil {
			err = fmt.Errorf("push matrix %d: %w", mode, err)
			break
		}
		pushed = append(pushed, mode)
		if err = g.LoadIdentity(mode); err != nil {
			err = fmt.Errorf("load identity %d: %w", mode, err)
			break
		}
	}
	if err == nil {
		err = fn()
	}
	for i := len(pushed) - 1; i >= 0; i-- {
		if popErr := g.PopMatrix(pushed[i]); popErr != nil {
			err = errors.Join(err, fmt.Errorf("pop matrix %d: %w", pushed[i], popErr))
		}
	}
	return err
}
