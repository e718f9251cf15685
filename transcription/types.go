package transcription

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
)

// Word is a word-level timestamp inside a segment.
type Word struct {
	Start       float64 `json:"start" mapstructure:"start"`
	End         float64 `json:"end" mapstructure:"end"`
	Word        string  `json:"word" mapstructure:"word"`
	Probability float64 `json:"probability" mapstructure:"probability"`
	Speaker     string  `json:"speaker,omitempty" mapstructure:"speaker,omitempty"`
}

// Segment represents a time-aligned portion of a transcript as produced by
// either engine. Optional fields are omitted when empty.
type Segment struct {
	ID               int      `json:"id" mapstructure:"id"`
	Seek             int      `json:"seek,omitempty" mapstructure:"seek,omitempty"`
	Start            float64  `json:"start" mapstructure:"start"`
	End              float64  `json:"end" mapstructure:"end"`
	Text             string   `json:"text" mapstructure:"text"`
	Tokens           []int    `json:"tokens,omitempty" mapstructure:"tokens,omitempty"`
	Temperature      float64  `json:"temperature,omitempty" mapstructure:"temperature,omitempty"`
	AvgLogprob       float64  `json:"avg_logprob,omitempty" mapstructure:"avg_logprob,omitempty"`
	CompressionRatio float64  `json:"compression_ratio,omitempty" mapstructure:"compression_ratio,omitempty"`
	NoSpeechProb     float64  `json:"no_speech_prob,omitempty" mapstructure:"no_speech_prob,omitempty"`
	Speakers         []string `json:"speakers,omitempty" mapstructure:"speakers,omitempty"`
	Words            []Word   `json:"words,omitempty" mapstructure:"words,omitempty"`
}

// Record is the plain key-value form of a Segment that travels in outbound
// messages.
type Record map[string]any

// ToRecord converts a segment field by field into a Record. Words are
// converted as well so the record holds no structs.
func ToRecord(seg Segment) (Record, error) {
	out := Record{}
	if err := mapstructure.Decode(seg, &out); err != nil {
		return nil, fmt.Errorf("convert segment %d: %w", seg.ID, err)
	}
	if len(seg.Words) > 0 {
		words := make([]map[string]any, len(seg.Words))
		for i, w := range seg.Words {
			words[i] = map[string]any{}
			if err := mapstructure.Decode(w, &words[i]); err != nil {
				return nil, fmt.Errorf("convert segment %d word %d: %w", seg.ID, i, err)
			}
		}
		out["words"] = words
	}
	return out, nil
}

// Args are the transcription arguments forwarded to the model.
type Args map[string]any

// Well-known argument keys.
const (
	ArgBlob    = "blob"
	ArgURL     = "url"
	ArgDiarize = "diarize"
	ArgStream  = "stream"
)

// Has reports whether key is present, whatever its value.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Bool returns the truth value of key. Missing keys are false; strings are
// parsed with strconv.ParseBool and numbers are true when non-zero.
func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// String returns the value of key when it is a string.
func (a Args) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// With returns a shallow copy of a with key set to value. The receiver is
// left untouched.
func (a Args) With(key string, value any) Args {
	out := make(Args, len(a)+1)
	maps.Copy(out, a)
	out[key] = value
	return out
}
