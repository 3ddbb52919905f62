package domain

// Translatable maps a locale ("en", "nl", ...) to display text.
type Translatable map[string]string

// Command is what the flow hands to the rendering host at a suspension point.
type Command interface {
	isCommand()
}

type RenderCommand struct {
	Page Page
}

type ExitCommand struct {
	Code int
	Info string
}

func (RenderCommand) isCommand() {}
func (ExitCommand) isCommand()   {}

type Page interface {
	isPage()
}

type DonationPage struct {
	Platform string
	Header   Translatable
	Body     PromptBody
}

type EndPage struct{}

func (DonationPage) isPage() {}
func (EndPage) isPage()      {}

type PromptBody interface {
	isPrompt()
}

type FileInputPrompt struct {
	Description Translatable
	Extensions  string
}

type ConfirmPrompt struct {
	Text   Translatable
	Ok     Translatable
	Cancel Translatable
}

type ConsentFormPrompt struct {
	Tables       []ConsentTable
	MetaTables   []ConsentTable
	DonateButton Translatable
}

type QuestionnairePrompt struct {
	Description Translatable
	Questions   []Question
}

func (FileInputPrompt) isPrompt()     {}
func (ConfirmPrompt) isPrompt()       {}
func (ConsentFormPrompt) isPrompt()   {}
func (QuestionnairePrompt) isPrompt() {}

type ConsentTable struct {
	ID             string
	Title          Translatable
	Description    Translatable
	Headers        []string
	Rows           [][]string
	Visualizations []Visualization
}

type Visualization struct {
	Title      Translatable `json:"title"`
	Type       string       `json:"type"`
	TextColumn string       `json:"textColumn"`
}

type QuestionKind string

const (
	QuestionOpen           QuestionKind = "open"
	QuestionMultipleChoice QuestionKind = "multiple_choice"
)

type Question struct {
	ID       int
	Kind     QuestionKind
	Question Translatable
	Choices  []Translatable
}

// Response is the host's answer to a render command. The set of variants is
// closed; hosts that send anything else produce PayloadUnknown.
type Response interface {
	isResponse()
}

type PayloadString struct {
	Value string
}

type PayloadTrue struct{}

type PayloadFalse struct{}

type PayloadJSON struct {
	Value string
}

type PayloadVoid struct{}

type PayloadUnknown struct {
	Type string
}

func (PayloadString) isResponse()  {}
func (PayloadTrue) isResponse()    {}
func (PayloadFalse) isResponse()   {}
func (PayloadJSON) isResponse()    {}
func (PayloadVoid) isResponse()    {}
func (PayloadUnknown) isResponse() {}
