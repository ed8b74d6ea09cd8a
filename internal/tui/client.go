package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattjoyce/wordbot/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Commands      []string `json:"commands"`
	Registration  struct {
		Status    string `json:"status"`
		Attempts  int    `json:"attempts"`
		LastError string `json:"last_error"`
	} `json:"registration"`
	Subscribers int `json:"event_subscribers"`
}

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{ err error }
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to /events and feeds events into ch until the
// stream ends. Reconnects resume after lastID via Last-Event-ID.
func subscribeToEvents(client *http.Client, apiURL, apiKey string, lastID *atomic.Int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Accept", "text/event-stream")
		if id := lastID.Load(); id > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(id, 10))
		}

		resp, err := client.Do(req)
		if err != nil {
			return sseDisconnectedMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return sseDisconnectedMsg{err: fmt.Errorf("events: unexpected status %d", resp.StatusCode)}
		}

		err = readSSE(resp.Body, func(ev events.Event) {
			lastID.Store(ev.ID)
			ch <- ev
		})
		return sseDisconnectedMsg{err: err}
	}
}

// readSSE parses a text/event-stream body and calls emit once per event.
// Comment lines (keep-alives) are ignored.
func readSSE(r io.Reader, emit func(events.Event)) error {
	scanner := bufio.NewScanner(r)
	var (
		id   int64
		typ  string
		data strings.Builder
	)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() > 0 {
				ev := events.Event{ID: id, Type: typ, Data: json.RawMessage(data.String())}
				ev.At = eventTime(ev)
				emit(ev)
			}
			id, typ = 0, ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			if v, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				id = v
			}
		case strings.HasPrefix(line, "event: "):
			typ = line[7:]
		case strings.HasPrefix(line, "data: "):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(line[6:])
		}
	}
	return scanner.Err()
}

// eventTime uses the payload's own timestamp when it carries one.
func eventTime(ev events.Event) time.Time {
	var stamped struct {
		At time.Time `json:"at"`
	}
	if err := json.Unmarshal(ev.Data, &stamped); err == nil && !stamped.At.IsZero() {
		return stamped.At
	}
	return time.Now()
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(client *http.Client, apiURL, apiKey string) tea.Msg {
	req, err := http.NewRequest(http.MethodGet, apiURL+"/healthz", nil)
	if err != nil {
		return errMsg(err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errMsg(fmt.Errorf("healthz: unexpected status %d", resp.StatusCode))
	}

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}
