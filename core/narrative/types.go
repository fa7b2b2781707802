package narrative

// Option is a user-selectable narrative branch. Immutable once created.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Request is the payload sent to the branch-generation endpoint. Exactly
// one of Option or Prompt is expected to be set: Option when the user
// picked a branch, Prompt when a transcript line triggered generation.
type Request struct {
	Option  string `json:"option,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
	History string `json:"history,omitempty"`
}

// Reply is a generated story beat. An absent options list means the
// option UI should be cleared.
type Reply struct {
	Text    string   `json:"text"`
	Speaker string   `json:"speaker,omitempty"`
	Options []Option `json:"options,omitempty"`
}
