// Package plugin discovers and runs delivery plugins: external executables that
// receive finished sessions as JSON on stdin.
package plugin

import (
	"encoding/json"
	"time"
)

// EventSessionFinished is sent when a session enters review with its photos.
const EventSessionFinished = "session.finished"

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the plugin subscribes to event.
func (m Manifest) Handles(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// PhotoRef is a photo as seen by a plugin.
type PhotoRef struct {
	Seq     int       `json:"seq"`
	Path    string    `json:"path"`
	TakenAt time.Time `json:"taken_at"`
}

// Request is written to a plugin's stdin.
type Request struct {
	Event      string          `json:"event"`
	SessionID  string          `json:"session_id"`
	Photos     []PhotoRef      `json:"photos"`
	FinishedAt time.Time       `json:"finished_at"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
