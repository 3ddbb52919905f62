package domain

type ValidationStatus int

const (
	StatusRecognized          ValidationStatus = 0
	StatusRecognizedUnhandled ValidationStatus = 1
	StatusMalformedArchive    ValidationStatus = 2
)

func (s ValidationStatus) String() string {
	switch s {
	case StatusRecognized:
		return "recognized"
	case StatusRecognizedUnhandled:
		return "recognized_unhandled"
	case StatusMalformedArchive:
		return "malformed_archive"
	default:
		return "unknown"
	}
}

// ValidationResult is produced once per submitted archive. Category is set
// only when Status is StatusRecognized. Members holds the candidate file
// names seen in a readable archive.
type ValidationResult struct {
	Status   ValidationStatus `json:"status"`
	Category *Category        `json:"category,omitempty"`
	Members  []string         `json:"members,omitempty"`
}

func (v ValidationResult) Recognized() bool {
	return v.Status == StatusRecognized && v.Category != nil
}
