package domain

// CallStatus classifies a call attempt. The underlying value is the internal
// code persisted by the result stores; the wire description is the provider's
// vocabulary. Codes are append-only: a retired code is never reassigned.
type CallStatus int

const (
	CallStatusUnknown    CallStatus = -1
	CallStatusQueued     CallStatus = 0
	CallStatusInitiated  CallStatus = 1
	CallStatusRinging    CallStatus = 2
	CallStatusInProgress CallStatus = 3
	CallStatusCanceled   CallStatus = 4
	CallStatusCompleted  CallStatus = 5
	CallStatusBusy       CallStatus = 6
	CallStatusFailed     CallStatus = 7
	CallStatusNoAnswer   CallStatus = 8
)

var callStatusDescriptions = map[CallStatus]string{
	CallStatusQueued:     "queued",
	CallStatusInitiated:  "initiated",
	CallStatusRinging:    "ringing",
	CallStatusInProgress: "in-progress",
	CallStatusCanceled:   "canceled",
	CallStatusCompleted:  "completed",
	CallStatusBusy:       "busy",
	CallStatusFailed:     "failed",
	CallStatusNoAnswer:   "no-answer",
	CallStatusUnknown:    "unknown",
}

var callStatusesByDescription = func() map[string]CallStatus {
	m := make(map[string]CallStatus, len(callStatusDescriptions))
	for status, desc := range callStatusDescriptions {
		m[desc] = status
	}
	return m
}()

// CallStatuses lists every status in code order, UNKNOWN last.
func CallStatuses() []CallStatus {
	return []CallStatus{
		CallStatusQueued,
		CallStatusInitiated,
		CallStatusRinging,
		CallStatusInProgress,
		CallStatusCanceled,
		CallStatusCompleted,
		CallStatusBusy,
		CallStatusFailed,
		CallStatusNoAnswer,
		CallStatusUnknown,
	}
}

// ParseCallStatus decodes a provider status description. Unrecognised values
// decode to CallStatusUnknown.
func ParseCallStatus(desc string) CallStatus {
	if status, ok := callStatusesByDescription[desc]; ok {
		return status
	}
	return CallStatusUnknown
}

// CallStatusFromCode decodes a persisted internal code. Unrecognised codes
// decode to CallStatusUnknown.
func CallStatusFromCode(code int) CallStatus {
	status := CallStatus(code)
	if _, ok := callStatusDescriptions[status]; ok {
		return status
	}
	return CallStatusUnknown
}

// Code returns the internal code used for persistence.
func (s CallStatus) Code() int {
	if _, ok := callStatusDescriptions[s]; !ok {
		return int(CallStatusUnknown)
	}
	return int(s)
}

// String returns the provider wire description.
func (s CallStatus) String() string {
	if desc, ok := callStatusDescriptions[s]; ok {
		return desc
	}
	return callStatusDescriptions[CallStatusUnknown]
}
