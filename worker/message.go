package worker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kbukum/whisperjob/transcription"
)

// MessageKind tells which of the three outbound shapes a Message holds.
type MessageKind string

const (
	KindError  MessageKind = "error"
	KindResult MessageKind = "result"
	KindBatch  MessageKind = "batch"
)

// Message is one outbound record of a job. It marshals to {"error": "..."},
// {"result": [...]} or a bare JSON array for a batch.
type Message struct {
	kind    MessageKind
	text    string
	records []transcription.Record
}

// NewError returns an error message.
func NewError(text string) Message {
	return Message{kind: KindError, text: text}
}

// NewResult returns the final aggregate of a non-streaming job.
func NewResult(records []transcription.Record) Message {
	return Message{kind: KindResult, records: records}
}

// NewBatch returns one streaming batch.
func NewBatch(records []transcription.Record) Message {
	return Message{kind: KindBatch, records: records}
}

func (m Message) Kind() MessageKind { return m.kind }

// Text is the error text of an error message.
func (m Message) Text() string { return m.text }

// Records returns the records of a result or batch message.
func (m Message) Records() []transcription.Record { return m.records }

func (m Message) MarshalJSON() ([]byte, error) {
	records := m.records
	if records == nil {
		records = []transcription.Record{}
	}
	switch m.kind {
	case KindError:
		return json.Marshal(map[string]string{"error": m.text})
	case KindResult:
		return json.Marshal(map[string][]transcription.Record{"result": records})
	case KindBatch:
		return json.Marshal(records)
	default:
		return nil, fmt.Errorf("worker: cannot marshal message of kind %q", m.kind)
	}
}

func (m *Message) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []transcription.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return err
		}
		*m = NewBatch(records)
		return nil
	}

	var raw struct {
		Error  *string                 `json:"error"`
		Result []transcription.Record `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Error != nil:
		*m = NewError(*raw.Error)
	case raw.Result != nil:
		*m = NewResult(raw.Result)
	default:
		return fmt.Errorf("worker: message is neither error, result nor batch: %s", data)
	}
	return nil
}
