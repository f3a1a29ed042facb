package ws

import (
	"log"

	socketio "github.com/googollee/go-socket.io"
)

const maxCatchUpEvents = 200

// handleRequestSteps handles the request:steps event: the client sends its
// last seen event id and receives every step event recorded since.
func handleRequestSteps(s socketio.Conn, data interface{}) {
	log.Printf("[WebSocket] request:steps from client %s, data: %v", s.ID(), data)

	var lastEventId int64 = 0
	if dataMap, ok := data.(map[string]interface{}); ok {
		if lastEventIdFloat, ok := dataMap["lastEventId"].(float64); ok {
			lastEventId = int64(lastEventIdFloat)
		}
	}

	events, err := GetIncrementalEvents(lastEventId, maxCatchUpEvents)
	if err != nil {
		log.Printf("[WebSocket] Failed to load events for client %s: %v", s.ID(), err)
		s.Emit("steps:error", map[string]interface{}{
			"message": "failed to load step events",
		})
		return
	}

	latestId := lastEventId
	if len(events) > 0 {
		latestId = events[len(events)-1].ID
	}

	s.Emit("steps:catchup", map[string]interface{}{
		"events":        events,
		"latestEventId": latestId,
	})
}
