package facade

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// appendLogLine appends a timestamped line to the façade's log file,
// rotating (keeping only the most recent MaxLogLines) whenever the file
// grows past that ceiling. Failures are logged and swallowed: log
// administration is informational, never load-bearing for a command's
// outcome.
func (f *Facade) appendLogLine(level, message string) {
	if f.cfg.LogFilePath == "" {
		return
	}

	f.logMu.Lock()
	defer f.logMu.Unlock()

	line := fmt.Sprintf("%s [%s] %s\n", time.Now().UTC().Format(time.RFC3339), level, message)

	if err := os.MkdirAll(filepath.Dir(f.cfg.LogFilePath), 0o755); err != nil {
		f.log.Debug("log directory creation failed", "error", err)
		return
	}

	file, err := os.OpenFile(f.cfg.LogFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		f.log.Debug("log file open failed", "error", err)
		return
	}
	if _, err := file.WriteString(line); err != nil {
		f.log.Debug("log file write failed", "error", err)
	}
	file.Close()

	f.rotateLocked()
}

// rotateLocked truncates the log file down to its last MaxLogLines
// lines. Caller must hold logMu.
func (f *Facade) rotateLocked() {
	data, err := os.ReadFile(f.cfg.LogFilePath)
	if err != nil {
		return
	}

	lines := splitLines(data)
	if len(lines) <= f.cfg.MaxLogLines {
		return
	}

	kept := lines[len(lines)-f.cfg.MaxLogLines:]
	var buf bytes.Buffer
	for _, l := range kept {
		buf.Write(l)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(f.cfg.LogFilePath, buf.Bytes(), 0o644); err != nil {
		f.log.Debug("log rotation write failed", "error", err)
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		lines = append(lines, line)
	}
	return lines
}
