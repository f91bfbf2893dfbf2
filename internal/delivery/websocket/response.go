package websocket

import "encoding/json"

// Acknowledgments sent back to the originating connection only. Room-wide
// events are emitted through the fanout service.
const (
	EventAuthenticated = "authenticated"
	EventError         = "error"
)

type AuthenticatedResponse struct {
	UserId string `json:"userId"`
}

type ErrorResponse struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}
