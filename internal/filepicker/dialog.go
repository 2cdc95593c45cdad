package filepicker

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

// DialogPicker opens a native file-chooser window. It's the optional,
// out-of-core collaborator: the peer command uses it only when run with
// --dialog; otherwise the share command reads the path with StdinPicker.
type DialogPicker struct{}

func (DialogPicker) Pick() (string, error) {
	a := app.New()
	w := a.NewWindow("Select a file to share")
	w.Resize(fyne.NewSize(480, 320))

	var (
		path    string
		pickErr error
	)
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		defer w.Close()
		if err != nil {
			pickErr = err
			return
		}
		if reader == nil {
			pickErr = ErrNoFileSelected
			return
		}
		defer reader.Close()
		path = reader.URI().Path()
	}, w)

	w.ShowAndRun()

	if pickErr != nil {
		return "", pickErr
	}
	if path == "" {
		return "", ErrNoFileSelected
	}
	return path, nil
}
