package domain

// RequestState is the lifecycle state of the last request made by a store.
type RequestState string

const (
	RequestProcessing RequestState = "processing"
	RequestSuccess    RequestState = "success"
	RequestFailure    RequestState = "failure"
)

// RequestStatus is the three-state value stores expose for display.
// Errors is only populated in the failure state.
type RequestStatus struct {
	State  RequestState `json:"state"`
	Errors []string     `json:"errors,omitempty"`
}

// Processing returns a status for a request that has not completed.
func Processing() RequestStatus { return RequestStatus{State: RequestProcessing} }

// Success returns a status for a completed request.
func Success() RequestStatus { return RequestStatus{State: RequestSuccess} }

// Failure returns a failed status carrying the given messages.
func Failure(msgs ...string) RequestStatus {
	return RequestStatus{State: RequestFailure, Errors: append([]string(nil), msgs...)}
}

// FailureFromError returns a failed status for err, falling back to
// fallback when err has no message.
func FailureFromError(err error, fallback string) RequestStatus {
	msg := ErrorMessage(err)
	if msg == "" {
		msg = fallback
	}
	return Failure(msg)
}

func (s RequestStatus) IsProcessing() bool { return s.State == RequestProcessing }
func (s RequestStatus) IsSuccess() bool    { return s.State == RequestSuccess }
func (s RequestStatus) IsFailure() bool    { return s.State == RequestFailure }
