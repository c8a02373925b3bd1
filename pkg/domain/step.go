package domain

import "encoding/json"

// Step is one entry in a session's history: the question that was pending,
// the opaque driver state that existed before it was answered, and, once
// answered, the answer given.
//
// An answered Step is immutable. Rewinding truncates the history and clears
// the answer of the step it lands on; it never edits an answered step in
// place, which would break the pure-replay guarantee.
type Step struct {
	Question    Question        `json:"question"`
	StateBefore json.RawMessage `json:"state_before,omitempty"`
	Answer      *Answer         `json:"answer,omitempty"`
}

// Answered reports whether this step carries an answer.
func (s Step) Answered() bool { return s.Answer != nil }

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	out.Question = s.Question.Clone()
	if s.StateBefore != nil {
		out.StateBefore = append(json.RawMessage(nil), s.StateBefore...)
	}
	if s.Answer != nil {
		ans := s.Answer.Clone()
		out.Answer = &ans
	}
	return out
}

// HistoryEntry is the read-only view of one step for display and audit.
type HistoryEntry struct {
	Index    int      `json:"index"`
	Question Question `json:"question"`
	Answer   *Answer  `json:"answer,omitempty"`
}

// Snapshot is the full serializable state of a session. It is what the
// session stores persist and what Resume rebuilds a session from. Replaying
// from a snapshot is sound because the opaque states are carried verbatim.
type Snapshot struct {
	// Form names the bundle this session belongs to, when started from one.
	Form string `json:"form,omitempty"`
	// Params are the immutable driver parameters the session was started with.
	Params map[string]any `json:"params,omitempty"`

	Steps         []Step            `json:"steps"`
	CachedAnswers map[string]Answer `json:"cached_answers,omitempty"`
	Done          bool              `json:"done,omitempty"`
	Result        json.RawMessage   `json:"result,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{Form: s.Form, Done: s.Done}
	if s.Params != nil {
		out.Params = make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			out.Params[k] = v
		}
	}
	if s.Steps != nil {
		out.Steps = make([]Step, len(s.Steps))
		for i, step := range s.Steps {
			out.Steps[i] = step.Clone()
		}
	}
	if s.CachedAnswers != nil {
		out.CachedAnswers = make(map[string]Answer, len(s.CachedAnswers))
		for id, ans := range s.CachedAnswers {
			out.CachedAnswers[id] = ans.Clone()
		}
	}
	if s.Result != nil {
		out.Result = append(json.RawMessage(nil), s.Result...)
	}
	return out
}
