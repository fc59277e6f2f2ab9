package audio

// OutcomeKind tags the result of processing one file.
type OutcomeKind string

const (
	// OutcomeOK means the file reached the canonical format.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeDegraded means processing continued on a fallback path.
	OutcomeDegraded OutcomeKind = "degraded"
	// OutcomeFailed means the file was dropped.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the per-file result of conversion or batch setup.
type Outcome struct {
	// Kind is the outcome tag.
	Kind OutcomeKind `json:"outcome"`
	// Input is the path the caller handed in.
	Input string `json:"input"`
	// Path is the resulting file. For degraded outcomes it is the
	// unconverted file processing continued with. Empty when failed.
	Path string `json:"path,omitempty"`
	// Reason explains degraded and failed outcomes.
	Reason string `json:"reason,omitempty"`
}

// OK returns a successful outcome.
func OK(input, path string) Outcome {
	return Outcome{Kind: OutcomeOK, Input: input, Path: path}
}

// Degraded returns an outcome that continued on path because of reason.
func Degraded(input, path, reason string) Outcome {
	return Outcome{Kind: OutcomeDegraded, Input: input, Path: path, Reason: reason}
}

// Failed returns an outcome for a dropped file.
func Failed(input, reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Input: input, Reason: reason}
}

// OK reports whether the outcome is successful.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}
