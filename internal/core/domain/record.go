package domain

// RawInteraction is an extractor's view of one interaction before cleaning.
type RawInteraction struct {
	Timestamp string
	Command   string
	Response  string
	// HasResponse is false when the source supplied no response at all.
	HasResponse bool
	// TrailingToken marks commands that still end with the locale "said" word.
	TrailingToken bool
}

// Table columns, shown to Dutch-speaking participants.
const (
	ColumnTimestamp = "Dag en tijd"
	ColumnCommand   = "Uw commando"
	ColumnResponse  = "Reactie van de assistent"
)

// TableColumns lists the column headers in record field order.
func TableColumns() []string {
	return []string{ColumnTimestamp, ColumnCommand, ColumnResponse}
}

type NormalizedRecord struct {
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
	Response  string `json:"response"`
}

// Table keeps source order; an empty table is a valid outcome.
type Table []NormalizedRecord

func (t Table) Empty() bool { return len(t) == 0 }
