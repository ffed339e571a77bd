package notify

import "github.com/robinjoseph08/golib/logger"

const (
	EventScanStarted   = "scan_started"
	EventScanCompleted = "scan_completed"
	EventSeriesAdded   = "series_added"
	EventSeriesUpdated = "series_updated"
	EventSeriesRemoved = "series_removed"
	EventSeriesError   = "series_error"
)

// Event is a library change announcement emitted after state is committed.
// Error events carry the cause so clients can surface scan failures without
// tailing the process log.
type Event struct {
	Name       string
	LibraryID  int
	SeriesID   int
	SeriesName string
	Error      string
}

// Sink receives events. Implementations must not block; scans fire events
// inline after each series commit.
type Sink interface {
	Publish(event Event)
}

// LogSink writes events to the process log. It stands in for a client push
// channel until one exists.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log}
}

func (s *LogSink) Publish(event Event) {
	data := logger.Data{
		"event":       event.Name,
		"library_id":  event.LibraryID,
		"series_id":   event.SeriesID,
		"series_name": event.SeriesName,
	}
	if event.Error != "" {
		data["error"] = event.Error
	}
	s.log.Info("event published", data)
}
