// Package filepicker lets the interactive shell ask the user which file
// to share. The default picker just reads a path from stdin; DialogPicker
// is an optional native file-chooser for when a peer is run with a
// display available.
package filepicker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoFileSelected is returned when the user cancels the picker without
// choosing a file.
var ErrNoFileSelected = errors.New("filepicker: no file selected")

// Picker returns the path of a file the user wants to share.
type Picker interface {
	Pick() (string, error)
}

// StdinPicker prompts on Out and reads a single line from In.
type StdinPicker struct {
	In  io.Reader
	Out io.Writer
}

// NewStdinPicker returns a StdinPicker reading from in and prompting on out.
func NewStdinPicker(in io.Reader, out io.Writer) *StdinPicker {
	return &StdinPicker{In: in, Out: out}
}

func (p *StdinPicker) Pick() (string, error) {
	fmt.Fprint(p.Out, "Path to the file you want to share: ")
	scanner := bufio.NewScanner(p.In)
	if !scanner.Scan() {
		return "", ErrNoFileSelected
	}
	path := strings.TrimSpace(scanner.Text())
	if path == "" {
		return "", ErrNoFileSelected
	}
	return path, nil
}
