// Package prompt wraps interactive terminal prompts.
package prompt

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// ErrAborted indicates the user cancelled the prompt.
var ErrAborted = errors.New("aborted")

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrEOF) {
		return ErrAborted
	}
	return err
}

// Input prompts for text input.
func Input(label string) (string, error) {
	p := promptui.Prompt{Label: label}
	result, err := p.Run()
	return result, wrapError(err)
}

// Password prompts for a password with masking.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	result, err := p.Run()
	return result, wrapError(err)
}
