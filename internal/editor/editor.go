package editor

import "fmt"

// Selection is the caret (Length 0) or a highlighted range.
type Selection struct {
	Index  int `json:"index"`
	Length int `json:"length"`
}

// Editor couples a document with the author's current selection.
type Editor struct {
	registry  *Registry
	doc       *Document
	selection *Selection
}

func (e *Editor) Document() *Document {
	return e.doc
}

func (e *Editor) HTML() string {
	return e.doc.HTML()
}

func (e *Editor) Length() int {
	return e.doc.Length()
}

// Load replaces the document with html and drops the selection.
func (e *Editor) Load(html string) error {
	doc, err := ParseDocument(html)
	if err != nil {
		return err
	}
	e.doc = doc
	e.selection = nil
	return nil
}

func (e *Editor) Selection() *Selection {
	if e.selection == nil {
		return nil
	}
	sel := *e.selection
	return &sel
}

// SetSelection moves the caret; the range is clamped to the document.
func (e *Editor) SetSelection(index, length int) {
	total := e.doc.Length()
	index = clamp(index, 0, total)
	e.selection = &Selection{Index: index, Length: clamp(length, 0, total-index)}
}

func (e *Editor) ClearSelection() {
	e.selection = nil
}

// insertionIndex is the caret position, or the end of the document when
// the editor has no selection.
func (e *Editor) insertionIndex() int {
	if e.selection != nil {
		return e.selection.Index
	}
	return e.doc.Length()
}

// InsertEmbed inserts a registered embed and returns its length.
func (e *Editor) InsertEmbed(index int, embed Embed) (int, error) {
	if _, ok := e.registry.Lookup(embed.Format()); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, embed.Format())
	}
	return e.doc.InsertEmbed(index, embed), nil
}

// InsertText inserts formatted text and returns its length.
func (e *Editor) InsertText(index int, text string, marks Marks) (int, error) {
	if marks.Button != "" {
		if _, ok := e.registry.Lookup(FormatButtonLink); !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, FormatButtonLink)
		}
	}
	return e.doc.InsertText(index, text, marks), nil
}

// InsertButton inserts a button-link over its label text.
func (e *Editor) InsertButton(index int, button ButtonLink) (int, error) {
	return e.InsertText(index, button.Text, Marks{Button: button.Href})
}
