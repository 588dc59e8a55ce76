// Package main is a delivery plugin that copies a finished session's photos
// into an outbox folder, one subfolder per session, with a manifest.json.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event      string          `json:"event"`
	SessionID  string          `json:"session_id"`
	Photos     []Photo         `json:"photos"`
	FinishedAt time.Time       `json:"finished_at"`
	Config     json.RawMessage `json:"config"`
}

// Photo is one photo reference in the request.
type Photo struct {
	Seq     int       `json:"seq"`
	Path    string    `json:"path"`
	TakenAt time.Time `json:"taken_at"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the plugin's settings from plugin.json.
type Config struct {
	Dir string `json:"dir"`
}

type manifest struct {
	SessionID  string    `json:"session_id"`
	FinishedAt time.Time `json:"finished_at"`
	Files      []string  `json:"files"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "session.finished" {
		writeErrorResponse(fmt.Sprintf("unsupported event: %s", req.Event))
		return
	}

	dest, files, err := deliver(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	data, _ := json.Marshal(map[string]any{"dir": dest, "copied": len(files)})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

// deliver copies every photo and writes the manifest.
func deliver(req Request) (string, []string, error) {
	if req.SessionID == "" {
		return "", nil, fmt.Errorf("session_id is required")
	}

	cfg := Config{Dir: "outbox"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	dest, err := filepath.Abs(filepath.Join(cfg.Dir, req.SessionID))
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create outbox: %w", err)
	}

	var files []string
	for _, p := range req.Photos {
		name := fmt.Sprintf("%02d%s", p.Seq, filepath.Ext(p.Path))
		if err := copyFile(p.Path, filepath.Join(dest, name)); err != nil {
			return "", nil, fmt.Errorf("photo %d: %w", p.Seq, err)
		}
		files = append(files, name)
	}

	m, err := json.MarshalIndent(manifest{SessionID: req.SessionID, FinishedAt: req.FinishedAt, Files: files}, "", "  ")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(filepath.Join(dest, "manifest.json"), m, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return dest, files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
