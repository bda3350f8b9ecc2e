package crtp

// ResponseKind identifies the decoded shape of an inbound ack payload.
type ResponseKind int

// Response kinds
const (
	ResponseUnknown ResponseKind = iota
	ResponseEmpty
	ResponseConsole
	ResponseLogInfo
	ResponseLogItem
	ResponseLogControl
	ResponseLogData
	ResponseParamInfo
	ResponseParamItem
	ResponseParamValue
	ResponseParamWrite
	ResponseRSSI
	ResponseTrajectory
)

// String returns string representation of ResponseKind
func (k ResponseKind) String() string {
	switch k {
	case ResponseEmpty:
		return "Empty"
	case ResponseConsole:
		return "Console"
	case ResponseLogInfo:
		return "LogInfo"
	case ResponseLogItem:
		return "LogItem"
	case ResponseLogControl:
		return "LogControl"
	case ResponseLogData:
		return "LogData"
	case ResponseParamInfo:
		return "ParamInfo"
	case ResponseParamItem:
		return "ParamItem"
	case ResponseParamValue:
		return "ParamValue"
	case ResponseParamWrite:
		return "ParamWrite"
	case ResponseRSSI:
		return "RSSI"
	case ResponseTrajectory:
		return "Trajectory"
	default:
		return "Unknown"
	}
}

// Response is a classified inbound ack payload. Exactly one of the typed
// fields is set, matching Kind. Unrecognized payloads classify as
// ResponseUnknown with the raw bytes preserved; that is a recognized
// condition, not an error.
type Response struct {
	Kind       ResponseKind
	Raw        []byte
	Console    *ConsoleResponse
	LogInfo    *LogGetInfoResponse
	LogItem    *LogGetItemResponse
	LogControl *LogControlResponse
	LogData    *LogDataResponse
	ParamInfo  *ParamGetInfoResponse
	ParamItem  *ParamGetItemResponse
	ParamValue *ParamValueResponse
	RSSI       *PlatformRSSIAck
	Trajectory *TrajectoryResponse
}

// Classify decodes an ack payload into a tagged Response by exact-pattern
// matching against the known response shapes. Order matters: the RSSI ack
// shares its first byte with the empty-queue marker and is tried before the
// generic empty check.
func Classify(data []byte) Response {
	if len(data) == 0 {
		return Response{Kind: ResponseEmpty}
	}

	switch {
	case MatchConsoleResponse(data):
		return Response{Kind: ResponseConsole, Raw: data, Console: ParseConsoleResponse(data)}

	case MatchLogGetInfoResponse(data):
		if r, err := ParseLogGetInfoResponse(data); err == nil {
			return Response{Kind: ResponseLogInfo, Raw: data, LogInfo: r}
		}

	case MatchLogGetItemResponse(data):
		if r, err := ParseLogGetItemResponse(data); err == nil {
			return Response{Kind: ResponseLogItem, Raw: data, LogItem: r}
		}

	case MatchLogControlResponse(data):
		if r, err := ParseLogControlResponse(data); err == nil {
			return Response{Kind: ResponseLogControl, Raw: data, LogControl: r}
		}

	case MatchLogDataResponse(data):
		if r, err := ParseLogDataResponse(data); err == nil {
			return Response{Kind: ResponseLogData, Raw: data, LogData: r}
		}

	case MatchParamGetInfoResponse(data):
		if r, err := ParseParamGetInfoResponse(data); err == nil {
			return Response{Kind: ResponseParamInfo, Raw: data, ParamInfo: r}
		}

	case MatchParamGetItemResponse(data):
		if r, err := ParseParamGetItemResponse(data); err == nil {
			return Response{Kind: ResponseParamItem, Raw: data, ParamItem: r}
		}

	case MatchParamValueResponse(data):
		if r, err := ParseParamValueResponse(data); err == nil {
			return Response{Kind: ResponseParamValue, Raw: data, ParamValue: r}
		}

	case MatchParamWriteResponse(data):
		return Response{Kind: ResponseParamWrite, Raw: data}

	case MatchPlatformRSSIAck(data):
		if r, err := ParsePlatformRSSIAck(data); err == nil {
			return Response{Kind: ResponseRSSI, Raw: data, RSSI: r}
		}

	case MatchTrajectoryResponse(data):
		if r, err := ParseTrajectoryResponse(data); err == nil {
			return Response{Kind: ResponseTrajectory, Raw: data, Trajectory: r}
		}

	case data[0] == HeaderEmpty1 || data[0] == HeaderEmpty2:
		return Response{Kind: ResponseEmpty, Raw: data}
	}

	return Response{Kind: ResponseUnknown, Raw: data}
}
