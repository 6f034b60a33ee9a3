// Package handler defines the shared vocabulary every dialogue-loop
// package speaks: the UserInput/ReplyMessage/QueueItem tagged unions, the
// Handler contract every dialogue handler implements, and the registry
// the arbiter scans each turn.
package handler

// UserInputKind discriminates the UserInput tagged union.
type UserInputKind int

const (
	UserInputCommand UserInputKind = iota
	UserInputParsed
	UserInputProgram
)

// PlatformData carries caller-supplied context attached to a UserInput.
type PlatformData struct {
	Locale    string
	Timezone  string
	Contacts  []Contact
	SpeakerID string
}

// Contact is a caller-supplied contact usable by lookupContact without a
// network round trip.
type Contact struct {
	Name  string
	Value string // phone number, email, or principal
	Kind  string // "phone_number", "email_address", "contact"
}

// UserInput is the tagged union of spec.md §3: Command | Parsed | Program.
type UserInput struct {
	Kind UserInputKind

	// Kind == UserInputCommand
	Utterance string

	// Kind == UserInputParsed
	Code     []string
	Entities map[string]any

	// Kind == UserInputProgram
	Program *ProgramAST

	Platform *PlatformData
}

// NewCommand builds a Command-tagged UserInput.
func NewCommand(utterance string, platform *PlatformData) UserInput {
	return UserInput{Kind: UserInputCommand, Utterance: utterance, Platform: platform}
}

// NewParsed builds a Parsed-tagged UserInput.
func NewParsed(code []string, entities map[string]any, platform *PlatformData) UserInput {
	return UserInput{Kind: UserInputParsed, Code: code, Entities: entities, Platform: platform}
}

// NewProgramInput builds a Program-tagged UserInput.
func NewProgramInput(program *ProgramAST, platform *PlatformData) UserInput {
	return UserInput{Kind: UserInputProgram, Program: program, Platform: platform}
}

// ProgramAST is the typed program the external parser/type-checker
// produces. Its internal shape belongs to that collaborator; the dialogue
// loop only needs to walk parameters, executor, and formatted prose.
type ProgramAST struct {
	Kind       string
	Executor   string // "self" or a remote principal
	Params     []ProgramParam
	Filters    []Filter
	DeviceID   string // set once disambiguation resolves a specific device
	SourceText string // canonical token/program form, for logs and round-trips
}

// ProgramParam is one declared parameter slot on a ProgramAST.
type ProgramParam struct {
	Name         string
	Category     ValueCategory
	Required     bool
	Value        any
	HasValue     bool
	SaveToContext string // context key to persist to, if any
}

// Filter is one conjunctive clause composed by the permission or makerule
// filter builder.
type Filter struct {
	Field    string
	Operator string
	Value    any
}

// ValueCategory is the closed enumeration constraining answers to a
// sub-dialogue question (spec.md §3).
type ValueCategory int

const (
	CategoryYesNo ValueCategory = iota
	CategoryChoice
	CategoryCommand
	CategoryNumber
	CategoryLocation
	CategoryTime
	CategoryDate
	CategoryRawString
	CategoryPassword
	CategoryPhoneNumber
	CategoryEmailAddress
	CategoryContact
	CategoryGeneric
)

func (c ValueCategory) String() string {
	switch c {
	case CategoryYesNo:
		return "YesNo"
	case CategoryChoice:
		return "Choice"
	case CategoryCommand:
		return "Command"
	case CategoryNumber:
		return "Number"
	case CategoryLocation:
		return "Location"
	case CategoryTime:
		return "Time"
	case CategoryDate:
		return "Date"
	case CategoryRawString:
		return "RawString"
	case CategoryPassword:
		return "Password"
	case CategoryPhoneNumber:
		return "PhoneNumber"
	case CategoryEmailAddress:
		return "EmailAddress"
	case CategoryContact:
		return "Contact"
	case CategoryGeneric:
		return "Generic"
	default:
		return "Unknown"
	}
}

// AskSpecialKind is the closed enumeration of AskSpecial markers
// (spec.md §3).
type AskSpecialKind string

const (
	AskYesNo        AskSpecialKind = "yesno"
	AskChoiceKind   AskSpecialKind = "choice"
	AskCommand      AskSpecialKind = "command"
	AskGeneric      AskSpecialKind = "generic"
	AskRawString    AskSpecialKind = "raw_string"
	AskPassword     AskSpecialKind = "password"
	AskNumber       AskSpecialKind = "number"
	AskLocation     AskSpecialKind = "location"
	AskPhoneNumber  AskSpecialKind = "phone_number"
	AskEmailAddress AskSpecialKind = "email_address"
	AskNull         AskSpecialKind = "null"
)

// ReplyMessageKind discriminates the ReplyMessage tagged union.
type ReplyMessageKind int

const (
	ReplyText ReplyMessageKind = iota
	ReplyPicture
	ReplyRDL
	ReplyButton
	ReplyLink
	ReplyChoice
	ReplyAskSpecial
)

// ReplyMessage is the tagged union of spec.md §3: Text | Picture | RDL |
// Button | Link | Choice | AskSpecial.
type ReplyMessage struct {
	Kind ReplyMessageKind
	Icon *string

	// ReplyText
	Text string

	// ReplyPicture
	URL string

	// ReplyRDL
	RDL RDL

	// ReplyButton
	ButtonTitle string
	ButtonJSON  string

	// ReplyLink
	LinkTitle string
	LinkURL   string

	// ReplyChoice
	ChoiceIndex int
	ChoiceTitle string

	// ReplyAskSpecial
	Special AskSpecialKind
}

// RDL is a rich display link card.
type RDL struct {
	DisplayTitle string
	WebCallback  string
	Description  string
	PictureURL   string
}

func withIcon(icon string) *string {
	if icon == "" {
		return nil
	}
	return &icon
}

// TextMessage builds a Text ReplyMessage.
func TextMessage(s, icon string) ReplyMessage {
	return ReplyMessage{Kind: ReplyText, Text: s, Icon: withIcon(icon)}
}

// PictureMessage builds a Picture ReplyMessage.
func PictureMessage(url, icon string) ReplyMessage {
	return ReplyMessage{Kind: ReplyPicture, URL: url, Icon: withIcon(icon)}
}

// RDLMessage builds an RDL ReplyMessage.
func RDLMessage(rdl RDL, icon string) ReplyMessage {
	return ReplyMessage{Kind: ReplyRDL, RDL: rdl, Icon: withIcon(icon)}
}

// ButtonMessage builds a Button ReplyMessage.
func ButtonMessage(title, json string) ReplyMessage {
	return ReplyMessage{Kind: ReplyButton, ButtonTitle: title, ButtonJSON: json}
}

// LinkMessage builds a Link ReplyMessage.
func LinkMessage(title, url string) ReplyMessage {
	return ReplyMessage{Kind: ReplyLink, LinkTitle: title, LinkURL: url}
}

// ChoiceMessage builds a Choice ReplyMessage.
func ChoiceMessage(index int, title, text string) ReplyMessage {
	return ReplyMessage{Kind: ReplyChoice, ChoiceIndex: index, ChoiceTitle: title, Text: text}
}

// AskSpecialMessage builds an AskSpecial ReplyMessage.
func AskSpecialMessage(kind AskSpecialKind) ReplyMessage {
	return ReplyMessage{Kind: ReplyAskSpecial, Special: kind}
}

// AnalysisType is the closed enum of spec.md §3's CommandAnalysisResult.
type AnalysisType int

const (
	AnalysisStop AnalysisType = iota
	AnalysisDebug
	AnalysisConfidentCommand
	AnalysisNonconfidentCommand
	AnalysisConfidentFollowup
	AnalysisNonconfidentFollowup
	AnalysisOutOfDomain
)

// CommandAnalysisResult is the pure, cheap classification every handler
// produces for a turn. Handlers are stateless between AnalyzeCommand and
// GetReply (spec.md's FAQ/skill handlers re-derive their answer from
// Utterance alone); Code/Program echo the same turn's Parsed/Program
// tags so a handler that needs the full token array or a pre-typed AST
// — the formal-program handler — can do the same without re-parsing an
// utterance it never received.
type CommandAnalysisResult struct {
	Type       AnalysisType
	Utterance  string
	UserTarget string
	Code       []string
	Entities   map[string]any
	Program    *ProgramAST
}

// ReplyResult is what getReply produces for a turn.
type ReplyResult struct {
	Messages    []ReplyMessage
	Expecting   *ValueCategory
	End         bool
	Context     string // for logs
	AgentTarget string // for logs
}

// QueueItemKind discriminates the QueueItem tagged union.
type QueueItemKind int

const (
	QueueUserInput QueueItemKind = iota
	QueueNotification
	QueueError
)

// QueueItem is the tagged union spec.md §3 defines for intent-queue
// payloads.
type QueueItem struct {
	Kind QueueItemKind
	Seq  uint64 // assigned at push time; diagnostics only, never used for ordering

	// QueueUserInput
	Command UserInput

	// QueueNotification / QueueError
	AppID      string
	AppName    string
	OutputType string
	OutputValue any
	Err        error
}
