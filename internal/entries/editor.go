package entries

import "fmt"

// RowState is the edit state of one row in a list.
type RowState int

const (
	Viewing RowState = iota
	Editing
	Saving
)

func (s RowState) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	}
	return fmt.Sprintf("RowState(%d)", int(s))
}

// RowEditor tracks which row of a list is being edited. At most one row is
// editing or saving at a time. Creating a new row is a separate slot that
// does not interact with row editing.
type RowEditor struct {
	row      string
	state    RowState
	creating bool
}

// Edit puts row into editing. It fails while another row is saving; a row
// that is merely editing is abandoned in favour of the new one.
func (e *RowEditor) Edit(row string) error {
	if row == "" {
		return fmt.Errorf("edit: empty row id")
	}
	if e.state == Saving {
		return fmt.Errorf("edit %s: row %s is saving", row, e.row)
	}
	e.row = row
	e.state = Editing
	return nil
}

// Save moves the editing row to saving.
func (e *RowEditor) Save() error {
	if e.state != Editing {
		return fmt.Errorf("save: no row is editing (state %s)", e.state)
	}
	e.state = Saving
	return nil
}

// Done finishes a save. On failure the row returns to editing so the user
// can retry with their changes intact.
func (e *RowEditor) Done(err error) {
	if e.state != Saving {
		return
	}
	if err != nil {
		e.state = Editing
		return
	}
	e.row = ""
	e.state = Viewing
}

// Cancel drops an edit without saving. A row that is saving cannot be
// cancelled.
func (e *RowEditor) Cancel() {
	if e.state == Editing {
		e.row = ""
		e.state = Viewing
	}
}

// State returns the state of row.
func (e *RowEditor) State(row string) RowState {
	if row != "" && row == e.row {
		return e.state
	}
	return Viewing
}

// Active returns the row being edited or saved, if any.
func (e *RowEditor) Active() (string, bool) {
	return e.row, e.state != Viewing
}

func (e *RowEditor) StartCreate()   { e.creating = true }
func (e *RowEditor) FinishCreate()  { e.creating = false }
func (e *RowEditor) Creating() bool { return e.creating }
