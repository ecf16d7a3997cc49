// Package location provides the station's position fix, either a fixed
// static coordinate from config or a live feed from a local gpsd.
package location

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// Fix is a single position report.
type Fix struct {
	Lat float64
	Lng float64
	Alt float64
	Epx float64
	Epy float64
	Epv float64
}

// Provider supplies the station's current location.
type Provider interface {
	// Current returns the current fix, or ok=false if none is available
	// (e.g. GPS hasn't reported in, or has gone stale).
	Current() (*Fix, bool)
	// Status is a short human string describing fix state, used in
	// heartbeats and the "location" REPL command.
	Status() string
}

// StaticProvider always returns the same configured fix.
type StaticProvider struct {
	fix Fix
}

// NewStatic returns a Provider for a fixed lat/lng.
func NewStatic(lat, lng float64) *StaticProvider {
	return &StaticProvider{fix: Fix{Lat: lat, Lng: lng}}
}

func (s *StaticProvider) Current() (*Fix, bool) {
	f := s.fix
	return &f, true
}

func (s *StaticProvider) Status() string {
	return fmt.Sprintf("static (%.4f, %.4f)", s.fix.Lat, s.fix.Lng)
}

// staleAfter is how long a GPS fix is trusted before Current reports none.
const staleAfter = 15 * time.Second

// gpsdTPV mirrors the subset of gpsd's JSON TPV report this station cares
// about. gpsd's wire protocol is out of scope beyond this minimal reader.
type gpsdTPV struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"alt"`
	Epx   float64 `json:"epx"`
	Epy   float64 `json:"epy"`
	Epv   float64 `json:"epv"`
}

// GPSProvider reads TPV reports from a local gpsd over its plain TCP/JSON
// interface (no gpsd client library exists in the retrieved pack and
// gpsd's protocol itself is out of scope, so this is a minimal stdlib
// reader rather than a full GPS stack).
type GPSProvider struct {
	addr string

	mu        sync.RWMutex
	fix       *Fix
	lastFix   time.Time
	connected bool
}

// NewGPS connects to gpsd at addr (typically "localhost:2947") and starts
// reading TPV reports in the background. Connection failures are retried
// every 5s; Current simply reports no fix until one is available.
func NewGPS(addr string) *GPSProvider {
	g := &GPSProvider{addr: addr}
	go g.run()
	return g
}

func (g *GPSProvider) run() {
	for {
		if err := g.readLoop(); err != nil {
			g.mu.Lock()
			g.connected = false
			g.mu.Unlock()
		}
		time.Sleep(5 * time.Second)
	}
}

func (g *GPSProvider) readLoop() error {
	conn, err := net.DialTimeout("tcp", g.addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`?WATCH={"enable":true,"json":true}` + "\n")); err != nil {
		return err
	}

	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var tpv gpsdTPV
		if err := json.Unmarshal(scanner.Bytes(), &tpv); err != nil {
			continue
		}
		if tpv.Class != "TPV" || tpv.Mode < 2 {
			continue
		}

		g.mu.Lock()
		g.fix = &Fix{Lat: tpv.Lat, Lng: tpv.Lon, Alt: tpv.Alt, Epx: tpv.Epx, Epy: tpv.Epy, Epv: tpv.Epv}
		g.lastFix = time.Now()
		g.mu.Unlock()
	}
	return scanner.Err()
}

func (g *GPSProvider) Current() (*Fix, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.fix == nil {
		return nil, false
	}
	if time.Since(g.lastFix) > staleAfter {
		return nil, false
	}
	f := *g.fix
	return &f, true
}

func (g *GPSProvider) Status() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.connected {
		return "gps disconnected"
	}
	if g.fix == nil {
		return "gps connected, no fix"
	}
	if time.Since(g.lastFix) > staleAfter {
		return "gps fix stale"
	}
	return fmt.Sprintf("gps fix (%.4f, %.4f)", g.fix.Lat, g.fix.Lng)
}
