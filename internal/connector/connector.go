// Package connector implements the station's authenticated link to the
// server: a push-only data channel and a strict request/reply command
// channel, both full-duplex websocket connections, plus the heartbeat-
// driven reconnect state machine that keeps them alive.
//
// The original station speaks this over two ZeroMQ sockets (PUSH for data,
// REQ for commands). No ZeroMQ binding exists in this module's dependency
// set, so each channel is instead one gorilla/websocket connection; the
// state machine and message shapes are otherwise unchanged.
package connector

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/location"
	"github.com/gammarf/station/internal/util"
)

// Request codes the server recognises (§3 Request ID enum).
const (
	ReqHeartbeat       = 0
	ReqInterestingGet  = 1
	ReqRtaskPut        = 2
	ReqRtaskGet        = 3
	ReqMessage         = 4
	ReqTDOAPut         = 5
	ReqTDOAQuery       = 6
	ReqTDOAReject      = 7
	ReqTDOAAccept      = 8
	ReqTDOAGo          = 9
	ReqRtaskAskCancel  = 10
	ReqInterestingAdd  = 11
	ReqInterestingDel  = 12
)

// State is the connector's connection-state-machine state.
type State int

const (
	Connecting State = iota
	Connected
	Backoff
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// wsConn is the subset of *websocket.Conn the connector uses, so tests can
// substitute a fake without opening real sockets.
type wsConn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens the two channel connections. Satisfied by a thin wrapper
// over gorilla/websocket.Dialer in production.
type Dialer interface {
	DialData(url string) (wsConn, error)
	DialCmd(url string) (wsConn, error)
}

type gorillaDialer struct{}

func (gorillaDialer) DialData(url string) (wsConn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (gorillaDialer) DialCmd(url string) (wsConn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewGorillaDialer returns the production Dialer backed by
// gorilla/websocket.
func NewGorillaDialer() Dialer { return gorillaDialer{} }

const (
	heartbeatInterval = 10 * time.Second
	reconnectTick     = 500 * time.Millisecond
	reconnectFloor    = 5 * time.Second
	cmdTimeout        = 1500 * time.Millisecond
	cmdAttempts       = 2
	cmdRetrySleep     = 2 * time.Second
	sendHWM           = 100
)

// Connector is the station's network boundary.
type Connector struct {
	dialer   Dialer
	dataURL  string
	cmdURL   string
	stationID   string
	stationPass string

	loc  location.Provider
	devs *devices.Registry
	log  *logrus.Logger

	mu      sync.Mutex // serialises the command channel end-to-end
	dataConn wsConn
	cmdConn  wsConn

	stateMu sync.RWMutex
	state   State

	lastAttempt  time.Time
	announced    bool
	disconnReason string

	interestingMu sync.RWMutex
	interesting   map[float64]string
}

// New constructs a Connector for the given station credentials and server.
func New(dialer Dialer, dataURL, cmdURL, stationID, stationPass string, loc location.Provider, devs *devices.Registry, log *logrus.Logger) *Connector {
	return &Connector{
		dialer:      dialer,
		dataURL:     dataURL,
		cmdURL:      cmdURL,
		stationID:   stationID,
		stationPass: stationPass,
		loc:         loc,
		devs:        devs,
		log:         log,
		state:       Connecting,
		interesting: make(map[float64]string),
	}
}

// State returns the current connection state.
func (c *Connector) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Connector) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Run starts the reconnect loop and the heartbeat loop in background
// goroutines and returns at once; both loops exit when stopCh closes, so
// the caller owns the connector's lifetime via stopCh.
func (c *Connector) Run(stopCh <-chan struct{}) {
	go c.reconnectLoop(stopCh)
	go c.heartbeatLoop(stopCh)
}

func (c *Connector) reconnectLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(reconnectTick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if c.State() == Connected {
				continue
			}
			if time.Since(c.lastAttempt) < reconnectFloor {
				continue
			}
			c.attemptConnect()
		}
	}
}

func (c *Connector) attemptConnect() {
	c.lastAttempt = time.Now()
	c.setState(Connecting)

	dataConn, err := c.dialer.DialData(c.dataURL)
	if err != nil {
		c.announceOnce(fmt.Sprintf("data channel connect failed: %v", err))
		c.setState(Backoff)
		return
	}
	cmdConn, err := c.dialer.DialCmd(c.cmdURL)
	if err != nil {
		dataConn.Close()
		c.announceOnce(fmt.Sprintf("command channel connect failed: %v", err))
		c.setState(Backoff)
		return
	}

	c.mu.Lock()
	if c.dataConn != nil {
		c.dataConn.Close()
	}
	if c.cmdConn != nil {
		c.cmdConn.Close()
	}
	c.dataConn = dataConn
	c.cmdConn = cmdConn
	c.mu.Unlock()

	reply, err := c.sendCommandLocked(map[string]any{"request": ReqHeartbeat})
	if err != nil || reply["reply"] != "ok" {
		c.setState(Disconnected)
		return
	}

	c.announced = false
	c.setState(Connected)
}

func (c *Connector) announceOnce(reason string) {
	if c.announced {
		return
	}
	c.announced = true
	c.disconnReason = reason
	util.ConsoleMessage("connector", "%s", reason)
}

func (c *Connector) heartbeatLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if c.State() != Connected {
				continue
			}
			c.beat()
		}
	}
}

func (c *Connector) beat() {
	running := []any{}
	if c.devs != nil {
		for _, job := range c.devs.Running() {
			argline := job.ArgLine
			if argline == "" {
				argline = "noargs"
			}
			running = append(running, []string{job.Module, argline, job.StartedAt.Format(time.RFC1123)})
		}
	}
	status := ""
	if c.loc != nil {
		status = c.loc.Status()
	}

	reply, err := c.SendCommand(map[string]any{
		"request": ReqHeartbeat,
		"running": running,
		"status":  status,
	})
	if err != nil {
		c.setState(Disconnected)
		return
	}

	switch reply["reply"] {
	case "ok":
		if msgs, ok := reply["messages"].([]any); ok {
			for i := 0; i+2 < len(msgs); i += 3 {
				util.ConsoleMessage("message", "%v %v: %v", msgs[i], msgs[i+1], msgs[i+2])
			}
		}
	case "unauthorized", "invalid_station":
		util.ConsoleMessage("connector", "disconnected: %v", reply["reply"])
		c.setState(Disconnected)
	default:
		c.setState(Disconnected)
	}
}

func (c *Connector) sign() (randHex, sign string) {
	randHex = uuid.NewString()[:8]
	sum := md5.Sum([]byte(c.stationPass + randHex))
	return randHex, hex.EncodeToString(sum[:])[:12]
}

func (c *Connector) authFields() map[string]any {
	fields := map[string]any{"stationid": c.stationID}
	rand, sign := c.sign()
	fields["rand"] = rand
	fields["sign"] = sign

	if c.loc != nil {
		if fix, ok := c.loc.Current(); ok {
			fields["lat"] = fix.Lat
			fields["lng"] = fix.Lng
			fields["alt"] = fix.Alt
			fields["epx"] = fix.Epx
			fields["epy"] = fix.Epy
			fields["epv"] = fix.Epv
		}
	}
	return fields
}

// SendData is a non-blocking, best-effort send on the data channel. It
// never returns an error to the caller - transient failures are simply
// dropped, matching the original's fire-and-forget PUSH semantics.
func (c *Connector) SendData(payload map[string]any) {
	c.mu.Lock()
	conn := c.dataConn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	for k, v := range c.authFields() {
		payload[k] = v
	}
	_ = conn.WriteJSON(payload)
}

// SendCommand sends payload on the command channel and waits for a reply,
// serialised against every other caller (including the heartbeat loop) by
// a single mutex held across the full exchange.
func (c *Connector) SendCommand(payload map[string]any) (map[string]any, error) {
	if c.State() != Connected {
		if req, _ := payload["request"].(int); req != ReqHeartbeat {
			return map[string]any{"reply": "error", "error": "not_connected"}, fmt.Errorf("not connected")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCommandLocked(payload)
}

// sendCommandLocked assumes c.mu is already held.
func (c *Connector) sendCommandLocked(payload map[string]any) (map[string]any, error) {
	conn := c.cmdConn
	if conn == nil {
		return map[string]any{"reply": "error", "error": "txerror"}, fmt.Errorf("no command connection")
	}

	for k, v := range c.authFields() {
		payload[k] = v
	}

	var lastErr error
	for attempt := 0; attempt < cmdAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(cmdRetrySleep)
		}
		if err := conn.WriteJSON(payload); err != nil {
			lastErr = err
			continue
		}

		reply, err := c.readReply(conn)
		if err != nil {
			lastErr = err
			continue
		}
		return reply, nil
	}

	errKind := "txerror"
	if lastErr != nil {
		errKind = "rxerror"
	}
	return map[string]any{"reply": "error", "error": errKind}, fmt.Errorf("send_command failed: %w", lastErr)
}

func (c *Connector) readReply(conn wsConn) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt < cmdAttempts; attempt++ {
		_ = conn.SetReadDeadline(time.Now().Add(cmdTimeout))
		var reply map[string]any
		if err := conn.ReadJSON(&reply); err != nil {
			lastErr = err
			continue
		}
		return reply, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("noresp")
	}
	return nil, lastErr
}

// InterestingAdd registers a frequency of interest with the server and
// tracks it locally for List.
func (c *Connector) InterestingAdd(freqHz float64, name string) error {
	reply, err := c.SendCommand(map[string]any{
		"request": ReqInterestingAdd,
		"freq":    freqHz,
		"name":    name,
	})
	if err != nil || reply["reply"] != "ok" {
		return fmt.Errorf("interesting_add failed: %v", reply["reply"])
	}

	c.interestingMu.Lock()
	c.interesting[freqHz] = name
	c.interestingMu.Unlock()
	return nil
}

// InterestingDel removes a previously-registered frequency of interest.
func (c *Connector) InterestingDel(freqHz float64) error {
	reply, err := c.SendCommand(map[string]any{
		"request": ReqInterestingDel,
		"freq":    freqHz,
	})
	if err != nil || reply["reply"] != "ok" {
		return fmt.Errorf("interesting_del failed: %v", reply["reply"])
	}

	c.interestingMu.Lock()
	delete(c.interesting, freqHz)
	c.interestingMu.Unlock()
	return nil
}

// InterestingEntry is one (freq, name) pair, sorted ascending by freq.
type InterestingEntry struct {
	Freq float64
	Name string
}

// FetchInteresting queries the server (request=1) for the frequencies of
// interest it holds for this station - the "freqs" reply is a flat "freq
// name freq name ..." string, the same shape scanner/freqwatch poll on a
// refresh cadence to learn what to watch. The result is sorted ascending
// by frequency.
func (c *Connector) FetchInteresting() ([]InterestingEntry, error) {
	reply, err := c.SendCommand(map[string]any{"request": ReqInterestingGet})
	if err != nil || reply["reply"] != "ok" {
		return nil, fmt.Errorf("interesting_get failed: %v", reply["reply"])
	}

	raw, _ := reply["freqs"].(string)
	fields := strings.Fields(raw)

	out := make([]InterestingEntry, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		freq, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			continue
		}
		out = append(out, InterestingEntry{Freq: freq, Name: fields[i+1]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Freq < out[j].Freq })
	return out, nil
}

// InterestingList returns the frequencies of interest this station has
// itself registered, sorted ascending by frequency.
func (c *Connector) InterestingList() []InterestingEntry {
	c.interestingMu.RLock()
	defer c.interestingMu.RUnlock()

	out := make([]InterestingEntry, 0, len(c.interesting))
	for freq, name := range c.interesting {
		out = append(out, InterestingEntry{Freq: freq, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Freq < out[j].Freq })
	return out
}

// StationEntry is one row of the /util/locations response.
type StationEntry struct {
	Station string
	Lat     float64
	Lng     float64
	Active  bool
	Modules json.RawMessage
}

// StationsList fetches the list of stations known to the server via a
// plain HTTP GET. Any non-200 response or transport error is reported as
// an empty list, matching the original's silent-ignore behavior.
func (c *Connector) StationsList(webURL string) []StationEntry {
	resp, err := http.Get(webURL)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil
	}

	out := make([]StationEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		var entry StationEntry
		_ = json.Unmarshal(row[0], &entry.Station)
		_ = json.Unmarshal(row[1], &entry.Lat)
		_ = json.Unmarshal(row[2], &entry.Lng)
		_ = json.Unmarshal(row[3], &entry.Active)
		entry.Modules = row[4]
		out = append(out, entry)
	}
	return out
}

// StationsPretty renders StationsList as the text shown by the REPL's
// "stations" command.
func (c *Connector) StationsPretty(webURL string) string {
	stations := c.StationsList(webURL)
	if len(stations) == 0 {
		return "no stations reported"
	}

	out := ""
	for _, s := range stations {
		active := "inactive"
		if s.Active {
			active = "active"
		}
		out += fmt.Sprintf("%-20s %8.4f %9.4f %s\n", s.Station, s.Lat, s.Lng, active)
	}
	return out
}
