package categories

// Category groups events. Deleting a category deletes its events and their
// reservations.
type Category struct {
	ID          int64
	Name        string
	Description *string
	EventCount  int
}

// Input carries the category form.
type Input struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=2000"`
}

func (in Input) description() *string {
	if in.Description == "" {
		return nil
	}
	d := in.Description
	return &d
}
