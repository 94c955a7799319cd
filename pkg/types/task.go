// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the doc-conv-agent pipeline:
// configuration, the remote and local task status vocabularies, queue entries,
// and the outcome codes written to result markers.
package types

// RemoteStatus is a task status as reported by the conversion sandbox.
// The sandbox moves a task through pending → running → completed → reported;
// "completed" only means analysis finished, the report is ready at "reported".
type RemoteStatus string

const (
	RemotePending   RemoteStatus = "pending"
	RemoteRunning   RemoteStatus = "running"
	RemoteCompleted RemoteStatus = "completed"
	RemoteReported  RemoteStatus = "reported"
)

// LocalStatus is the agent's view of a remote task.
type LocalStatus string

const (
	StatusPending   LocalStatus = "pending"
	StatusRunning   LocalStatus = "running"
	StatusCompleted LocalStatus = "completed"
	StatusError     LocalStatus = "error"
)

// Terminal reports whether no further polling is needed for s.
func (s LocalStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Outcome codes written to result .eof markers.
const (
	CodeSuccess = "0"

	CodeUnsupportedType = "10000"
	CodeConverterError  = "10001"
	CodeQueueSaturated  = "10002"

	// Report fetch failures reuse the submission-phase tokens.
	CodeReportNotFound = "10001"
	CodeReportFetch    = "10002"

	CodeRemoteFailed = "20001"
	CodeStatusLost   = "20002"

	CodeSignatureDetected = "30001"
	CodeNoPayload         = "30002"
	CodeEmptyPayload      = "30003"
	CodeDecodeError       = "30004"
)

// Entry is a queued handle on a submitted task. StatusErrors counts
// consecutive failed status queries for the entry.
type Entry struct {
	TaskID       string `json:"task_id" yaml:"task_id"`
	Path         string `json:"path" yaml:"path"`
	StatusErrors int    `json:"status_errors" yaml:"status_errors"`
}

// Outcome is the result of fetching and analysing a remote task's report:
// the converted payload on success, otherwise an error code.
type Outcome struct {
	Payload []byte
	Code    string
}

// OK reports whether the outcome carries a payload.
func (o Outcome) OK() bool { return o.Code == CodeSuccess }

// Failed builds an outcome for the given error code.
func Failed(code string) Outcome { return Outcome{Code: code} }

// Succeeded builds a successful outcome carrying payload.
func Succeeded(payload []byte) Outcome { return Outcome{Payload: payload, Code: CodeSuccess} }
