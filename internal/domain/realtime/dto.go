// internal/domain/realtime/dto.go
package realtime

import "time"

// Device bridge ingestion requests.

type ReadingRequest struct {
	UserID      string     `json:"userId" binding:"required,uuid"`
	AnalyzerID  string     `json:"analyzerId" binding:"required"`
	Temperature float64    `json:"temperature"`
	Humidity    float64    `json:"humidity" binding:"min=0,max=100"`
	Rise        float64    `json:"rise" binding:"min=0"`
	Timestamp   *time.Time `json:"timestamp"`
}

type OtaProgressRequest struct {
	AnalyzerID string    `json:"analyzerId" binding:"required,uuid"`
	Status     OtaStatus `json:"status" binding:"required,oneof=started downloading applying completed failed"`
	Progress   int       `json:"progress" binding:"min=0,max=100"`
	Message    string    `json:"message" binding:"max=500"`
}

type DiagnosticsRequest struct {
	AnalyzerID string     `json:"analyzerId" binding:"required,uuid"`
	EpochTime  int64      `json:"epochTime"`
	LocalTime  *time.Time `json:"localTime"`
	Uptime     int64      `json:"uptime" binding:"min=0"`
	FreeHeap   int64      `json:"freeHeap" binding:"min=0"`
	State      string     `json:"state" binding:"required"`
	Wifi       WifiInfo   `json:"wifi"`
	Sensors    SensorInfo `json:"sensors"`
	Humidity   float64    `json:"humidity"`
}

// BroadcastRequest is the admin escape hatch for pushing a raw event to a topic.
type BroadcastRequest struct {
	Type    string         `json:"type" binding:"required,max=100"`
	Payload map[string]any `json:"payload"`
}

// RealtimeStats is the per-instance view served to admins.
type RealtimeStats struct {
	InstanceID        string   `json:"instanceId"`
	LocalConnections  int      `json:"localConnections"`
	LocalClients      int      `json:"localClients"`
	Topics            []string `json:"topics"`
	RegisteredHandles []string `json:"registeredMessageTypes"`
}

// PublishResult reports which topics an ingestion call fanned out to.
type PublishResult struct {
	Topics []string `json:"topics"`
}
