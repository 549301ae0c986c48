package events

import "time"

// Event is a scheduled happening that participants can reserve.
type Event struct {
	ID           int64
	Name         string
	Description  string
	Date         time.Time
	Time         string
	Location     string
	CategoryID   int64
	CategoryName string
	ImageRef     *string
}

// Detail is an event as seen by a particular principal.
type Detail struct {
	Event      Event
	Reserved   bool
	CanReserve bool
	CanEdit    bool
	CanDelete  bool
}

// CategoryOption is a selectable category on the event form.
type CategoryOption struct {
	ID   int64
	Name string
}

// Input carries the event form. Date is YYYY-MM-DD and Time is HH:MM.
type Input struct {
	Name        string `validate:"required,max=200"`
	Description string `validate:"required"`
	Date        string `validate:"required,datetime=2006-01-02"`
	Time        string `validate:"required,datetime=15:04"`
	Location    string `validate:"required,max=255"`
	CategoryID  int64  `validate:"required,gt=0"`
	ImageRef    string `validate:"omitempty,max=500"`
}

// Page is one page of an event listing.
type Page struct {
	Events []Event
	Total  int
	Page   int
	Limit  int
}

// HasNext reports whether another page follows.
func (p Page) HasNext() bool {
	return p.Page*p.Limit < p.Total
}
