// Package router parses the line protocol shared by the Debug and Device
// channels and dispatches recognized commands.
package router

import "strings"

// Verb is the closed set of actions a line can map to.
type Verb int

const (
	Unrecognized Verb = iota
	StartCamera
	StopCamera
	RecordAudio
	StopAudio
	ResetAudio
)

func (v Verb) String() string {
	switch v {
	case StartCamera:
		return "StartCamera"
	case StopCamera:
		return "StopCamera"
	case RecordAudio:
		return "RecordAudio"
	case StopAudio:
		return "StopAudio"
	case ResetAudio:
		return "ResetAudio"
	}
	return "Unrecognized"
}

// Device tags forwarded for the camera verbs.
const (
	TagStartCamera = "START_CAMERA"
	TagStopCamera  = "STOP_CAMERA"
)

var vocabulary = map[string]Verb{
	"heysalad start camera": StartCamera,
	"heysalad stop camera":  StopCamera,
	"heysalad record audio": RecordAudio,
	"heysalad stop audio":   StopAudio,
	"heysalad reset audio":  ResetAudio,
}

// Command is one trimmed inbound line and the verb it maps to.
type Command struct {
	Text string
	Verb Verb
}

// Matcher decides how raw lines are compared against the vocabulary.
type Matcher int

const (
	// Exact compares the trimmed line case-sensitively.
	Exact Matcher = iota
	// Normalized lowercases and collapses runs of whitespace first.
	Normalized
)

// Parse trims the line and maps it to a verb. Every line maps to exactly one
// verb; anything outside the vocabulary is Unrecognized.
func (m Matcher) Parse(line string) Command {
	text := strings.TrimSpace(line)
	key := text
	if m == Normalized {
		key = strings.Join(strings.Fields(strings.ToLower(text)), " ")
	}
	return Command{Text: text, Verb: vocabulary[key]}
}
