// internal/domain/realtime/messages.go
package realtime

import "time"

// Broadcast payloads. The envelope Type of each is its Go type name.

type SourdoughReading struct {
	AnalyzerID  string    `json:"analyzerId"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Rise        float64   `json:"rise"`
	Timestamp   time.Time `json:"timestamp"`
}

type OtaStatus string

const (
	OtaStarted     OtaStatus = "started"
	OtaDownloading OtaStatus = "downloading"
	OtaApplying    OtaStatus = "applying"
	OtaCompleted   OtaStatus = "completed"
	OtaFailed      OtaStatus = "failed"
)

type OtaProgressUpdate struct {
	AnalyzerID string    `json:"analyzerId"`
	Status     OtaStatus `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
}

type FirmwareAvailable struct {
	FirmwareID   string `json:"firmwareId"`
	Version      string `json:"version"`
	Description  string `json:"description"`
	ReleaseNotes string `json:"releaseNotes,omitempty"`
	IsStable     bool   `json:"isStable"`
	FileSize     int64  `json:"fileSize"`
}

type DiagnosticsResponse struct {
	AnalyzerID string     `json:"analyzerId"`
	EpochTime  int64      `json:"epochTime"`
	Timestamp  time.Time  `json:"timestamp"`
	LocalTime  time.Time  `json:"localTime"`
	Uptime     int64      `json:"uptime"`
	FreeHeap   int64      `json:"freeHeap"`
	State      string     `json:"state"`
	Wifi       WifiInfo   `json:"wifi"`
	Sensors    SensorInfo `json:"sensors"`
	Humidity   float64    `json:"humidity"`
}

type WifiInfo struct {
	Connected bool `json:"connected"`
	Rssi      int  `json:"rssi"`
}

type SensorInfo struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Rise        float64 `json:"rise"`
}

// RoomMessage is sent to a room when a member joins.
type RoomMessage struct {
	RoomID string `json:"roomId"`
	Status string `json:"status"`
}
