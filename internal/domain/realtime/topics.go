// internal/domain/realtime/topics.go
package realtime

import (
	"fmt"

	"github.com/google/uuid"
)

// Topics shared by producers and subscription handlers.
const (
	TopicFirmwareAvailable = "firmware-available"
	TopicAllDiagnostics    = "admin:diagnostics"
)

func SourdoughDataTopic(userID uuid.UUID) string {
	return fmt.Sprintf("sourdough-data:%s", userID)
}

func OtaProgressTopic(analyzerID uuid.UUID) string {
	return fmt.Sprintf("ota-progress:%s", analyzerID)
}

// DiagnosticsResponseTopic carries one analyzer's answer to a diagnostics request.
func DiagnosticsResponseTopic(analyzerID uuid.UUID) string {
	return fmt.Sprintf("admin:diagnostics:%s", analyzerID)
}

func RoomTopic(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}
