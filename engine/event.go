package engine

type EventType string

// Event type constants
const (
	EventInvoke       EventType = "invoke"
	EventFocusLost    EventType = "focus_lost"
	EventResolved     EventType = "resolved"
	EventResolveError EventType = "resolve_error"
	EventPickerActive EventType = "picker_active"
	EventPickerAccept EventType = "picker_accept"
	EventPickerCancel EventType = "picker_cancel"
)

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = buildEventTypeMap()
}

// buildEventTypeMap indexes the events the editor may send by name.
func buildEventTypeMap() map[string]EventType {
	eventMap := make(map[string]EventType)

	editorEvents := []EventType{
		EventFocusLost,
	}
	for _, eventType := range editorEvents {
		eventMap[string(eventType)] = eventType
	}

	eventMap["active"] = EventPickerActive
	eventMap["accept"] = EventPickerAccept
	eventMap["cancel"] = EventPickerCancel

	return eventMap
}

func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}

type Event struct {
	Type EventType
	Data any
}

type invokeRequest struct {
	id        string
	fromMarks bool
}
