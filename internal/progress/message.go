package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousMessage marks payloads that match more than one shape, or
	// carry a field of the wrong type.
	ErrAmbiguousMessage = errors.New("ambiguous progress message")
	// ErrUnknownMessage marks payloads that match no shape.
	ErrUnknownMessage = errors.New("unknown progress message")
)

// Kind identifies a decoded message shape.
type Kind int

const (
	KindProgress Kind = iota + 1
	KindResult
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ProgressMessage reports transcode completion percent for a job.
type ProgressMessage struct {
	JobID     string  `json:"job_id"`
	WorkerID  string  `json:"worker_id"`
	Timestamp float64 `json:"timestamp"`
	Progress  float64 `json:"progress"`
}

// ResultMessage is the terminal notice for a job. Error and ErrorType are set
// for failed jobs.
type ResultMessage struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	WorkerID     string  `json:"worker_id"`
	Timestamp    float64 `json:"timestamp"`
	OutputS3Path string  `json:"output_s3_path"`
	Error        string  `json:"error"`
	ErrorType    string  `json:"error_type"`
}

// ErrorMessage is a server-side notice such as an unknown job id.
type ErrorMessage struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// Message is the decoded union. Only the field matching Kind is populated.
type Message struct {
	Kind     Kind
	Progress ProgressMessage
	Result   ResultMessage
	Error    ErrorMessage
}

// RemoteError wraps an ErrorMessage delivered by the server.
type RemoteError struct {
	JobID   string
	Message string
}

func (e *RemoteError) Error() string {
	if e.JobID == "" {
		return "progress server: " + e.Message
	}
	return fmt.Sprintf("progress server: job %s: %s", e.JobID, e.Message)
}

// Decode parses one socket payload.
func Decode(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrUnknownMessage, err)
	}
	present := func(key string) bool {
		raw, ok := fields[key]
		return ok && strings.TrimSpace(string(raw)) != "null"
	}

	if present("type") {
		var tag string
		if err := json.Unmarshal(fields["type"], &tag); err != nil {
			return Message{}, fmt.Errorf("%w: type tag is not a string", ErrAmbiguousMessage)
		}
		switch strings.ToLower(strings.TrimSpace(tag)) {
		case "progress":
			if !isNumber(fields["progress"]) {
				return Message{}, fmt.Errorf("%w: progress message without numeric progress", ErrAmbiguousMessage)
			}
			return decodeAs(data, KindProgress)
		case "result":
			if !present("status") {
				return Message{}, fmt.Errorf("%w: result message without status", ErrAmbiguousMessage)
			}
			return decodeAs(data, KindResult)
		case "error":
			return decodeAs(data, KindError)
		default:
			return Message{}, fmt.Errorf("%w: type %q", ErrUnknownMessage, tag)
		}
	}

	hasProgress := present("progress")
	hasStatus := present("status")
	hasError := present("error")

	switch {
	case hasProgress && (hasStatus || hasError):
		return Message{}, fmt.Errorf("%w: progress combined with status or error", ErrAmbiguousMessage)
	case hasProgress:
		if !isNumber(fields["progress"]) {
			return Message{}, fmt.Errorf("%w: progress is not numeric", ErrAmbiguousMessage)
		}
		return decodeAs(data, KindProgress)
	case hasStatus:
		return decodeAs(data, KindResult)
	case hasError:
		return decodeAs(data, KindError)
	default:
		return Message{}, ErrUnknownMessage
	}
}

func decodeAs(data []byte, kind Kind) (Message, error) {
	msg := Message{Kind: kind}
	var err error
	switch kind {
	case KindProgress:
		err = json.Unmarshal(data, &msg.Progress)
	case KindResult:
		var raw resultWire
		err = json.Unmarshal(data, &raw)
		msg.Result = raw.message()
	case KindError:
		var raw errorWire
		err = json.Unmarshal(data, &raw)
		msg.Error = ErrorMessage{JobID: deref(raw.JobID), Error: raw.errorText()}
	}
	if err != nil {
		return Message{}, fmt.Errorf("%w: decode %s: %w", ErrAmbiguousMessage, kind, err)
	}
	return msg, nil
}

// resultWire tolerates the nulls the backend sends for unset fields.
type resultWire struct {
	JobID        *string  `json:"job_id"`
	Status       *string  `json:"status"`
	WorkerID     *string  `json:"worker_id"`
	Timestamp    *float64 `json:"timestamp"`
	OutputS3Path *string  `json:"output_s3_path"`
	Error        *string  `json:"error"`
	ErrorType    *string  `json:"error_type"`
}

func (w resultWire) message() ResultMessage {
	msg := ResultMessage{
		JobID:        deref(w.JobID),
		Status:       deref(w.Status),
		WorkerID:     deref(w.WorkerID),
		OutputS3Path: deref(w.OutputS3Path),
		Error:        deref(w.Error),
		ErrorType:    deref(w.ErrorType),
	}
	if w.Timestamp != nil {
		msg.Timestamp = *w.Timestamp
	}
	return msg
}

type errorWire struct {
	JobID *string         `json:"job_id"`
	Error json.RawMessage `json:"error"`
}

func (w errorWire) errorText() string {
	var text string
	if err := json.Unmarshal(w.Error, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(w.Error))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNumber(raw json.RawMessage) bool {
	var f float64
	return len(raw) > 0 && json.Unmarshal(raw, &f) == nil
}
