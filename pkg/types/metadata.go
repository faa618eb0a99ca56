package types

import "time"

// FileMetadata describes a reassembled payload that was written to disk
type FileMetadata struct {
	Name       string    `json:"name"`       // File name on disk
	Path       string    `json:"path"`       // Full path the payload was written to
	Size       int64     `json:"size"`       // File size in bytes
	MimeType   string    `json:"mimeType"`   // Detected MIME type of the payload
	Checksum   string    `json:"checksum"`   // SHA-256 checksum
	SessionID  string    `json:"sessionId"`  // Receiver session that produced the payload
	ReceivedAt time.Time `json:"receivedAt"` // When the End sentinel completed the transfer
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
}

// ProgressUpdate represents raw transfer progress data
type ProgressUpdate struct {
	Packets int // Data packets sent or fragments held so far
	Total   int // Data packets in the transfer
	Bytes   int // Bytes written or received so far
}
