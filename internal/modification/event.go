package modification

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the wire discriminator of an Event.
type EventType string

const (
	EventTypeLog      EventType = "log"
	EventTypeComplete EventType = "complete"
	EventTypeError    EventType = "error"
)

// TimestampLayout is the wire format of LogLine timestamps (UTC, milliseconds).
const TimestampLayout = "2006-01-02 15:04:05.000"

// CancelledMessage is the terminal failure message of a cancelled run.
const CancelledMessage = "Operation was cancelled"

// Event is one unit of progress emitted by a run. The set of implementations
// is closed: LogLine, Complete and Failure.
type Event interface {
	Type() EventType
	// Terminal reports whether the event ends the stream.
	Terminal() bool
	isEvent()
}

// LogLine is a log call captured from a unit of work.
type LogLine struct {
	Timestamp time.Time
	Level     Level
	Category  string
	Message   string
}

// Complete reports a run that finished without fault.
type Complete struct {
	Success bool
}

// Failure reports a run that was cancelled or faulted. Detail is optional.
type Failure struct {
	Message string
	Detail  string
}

func (LogLine) Type() EventType  { return EventTypeLog }
func (Complete) Type() EventType { return EventTypeComplete }
func (Failure) Type() EventType  { return EventTypeError }

func (LogLine) Terminal() bool  { return false }
func (Complete) Terminal() bool { return true }
func (Failure) Terminal() bool  { return true }

func (LogLine) isEvent()  {}
func (Complete) isEvent() {}
func (Failure) isEvent()  {}

type logLineWire struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"`
	Level     Level     `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
}

type completeWire struct {
	Type    EventType `json:"type"`
	Success bool      `json:"success"`
}

type failureWire struct {
	Type         EventType `json:"type"`
	ErrorMessage string    `json:"errorMessage"`
	StackTrace   string    `json:"stackTrace,omitempty"`
}

func (e LogLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(logLineWire{
		Type:      EventTypeLog,
		Timestamp: e.Timestamp.UTC().Format(TimestampLayout),
		Level:     e.Level,
		Category:  e.Category,
		Message:   e.Message,
	})
}

func (e Complete) MarshalJSON() ([]byte, error) {
	return json.Marshal(completeWire{Type: EventTypeComplete, Success: e.Success})
}

func (e Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(failureWire{Type: EventTypeError, ErrorMessage: e.Message, StackTrace: e.Detail})
}

// EncodeEvent serializes an event with its "type" discriminator.
func EncodeEvent(e Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("encode event: nil event")
	}
	return json.Marshal(e)
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch head.Type {
	case EventTypeLog:
		var w logLineWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode log event: %w", err)
		}
		ts, err := time.ParseInLocation(TimestampLayout, w.Timestamp, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("decode log event timestamp: %w", err)
		}
		return LogLine{Timestamp: ts, Level: w.Level, Category: w.Category, Message: w.Message}, nil
	case EventTypeComplete:
		var w completeWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode complete event: %w", err)
		}
		return Complete{Success: w.Success}, nil
	case EventTypeError:
		var w failureWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode error event: %w", err)
		}
		return Failure{Message: w.ErrorMessage, Detail: w.StackTrace}, nil
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", head.Type)
	}
}
