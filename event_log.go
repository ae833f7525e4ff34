package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var eventLogHeader = []string{"url", "referrer", "status", "content_type", "depth", "discovered_at"}

// CrawlEvent records one fetch attempt. Status is zero when no HTTP response
// was received.
type CrawlEvent struct {
	URL          string
	Referrer     string
	Status       int
	ContentType  string
	Depth        int
	DiscoveredAt time.Time
}

// EventRecorder receives crawl events as fetches complete.
type EventRecorder interface {
	Record(event CrawlEvent) error
	Close() error
}

// CSVEventLog appends crawl events to a CSV file, flushing after every row.
type CSVEventLog struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// OpenCSVEventLog creates the file at path, with parent directories, and writes the header.
func OpenCSVEventLog(path string) (*CSVEventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	log := &CSVEventLog{file: file, writer: csv.NewWriter(file)}
	if err := log.writeRow(eventLogHeader); err != nil {
		_ = file.Close()
		return nil, err
	}
	return log, nil
}

func (l *CSVEventLog) Record(event CrawlEvent) error {
	status := ""
	if event.Status != 0 {
		status = strconv.Itoa(event.Status)
	}
	return l.writeRow([]string{
		event.URL,
		event.Referrer,
		status,
		event.ContentType,
		strconv.Itoa(event.Depth),
		event.DiscoveredAt.UTC().Format(time.RFC3339Nano),
	})
}

func (l *CSVEventLog) writeRow(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Write(row); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

func (l *CSVEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}
