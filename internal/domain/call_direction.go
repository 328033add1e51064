package domain

// CallDirection tells whether a call was placed by us or received.
// Same dual encoding as CallStatus.
type CallDirection int

const (
	CallDirectionUnknown  CallDirection = -1
	CallDirectionInbound  CallDirection = 0
	CallDirectionOutbound CallDirection = 1
)

var callDirectionDescriptions = map[CallDirection]string{
	CallDirectionInbound:  "inbound",
	CallDirectionOutbound: "outbound-api",
	CallDirectionUnknown:  "unknown",
}

// CallDirections lists every direction in code order, UNKNOWN last.
func CallDirections() []CallDirection {
	return []CallDirection{CallDirectionInbound, CallDirectionOutbound, CallDirectionUnknown}
}

// ParseCallDirection decodes a provider direction description.
func ParseCallDirection(desc string) CallDirection {
	for direction, d := range callDirectionDescriptions {
		if d == desc {
			return direction
		}
	}
	return CallDirectionUnknown
}

// CallDirectionFromCode decodes a persisted internal code.
func CallDirectionFromCode(code int) CallDirection {
	direction := CallDirection(code)
	if _, ok := callDirectionDescriptions[direction]; ok {
		return direction
	}
	return CallDirectionUnknown
}

// Code returns the internal code used for persistence.
func (d CallDirection) Code() int {
	if _, ok := callDirectionDescriptions[d]; !ok {
		return int(CallDirectionUnknown)
	}
	return int(d)
}

func (d CallDirection) String() string {
	if desc, ok := callDirectionDescriptions[d]; ok {
		return desc
	}
	return callDirectionDescriptions[CallDirectionUnknown]
}
