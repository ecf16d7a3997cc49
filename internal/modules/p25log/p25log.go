// Package p25log is a pseudo module (no radio hardware involved): it
// listens on a UDP port for trunk-recorder's tab-separated log lines and,
// for each line of exactly four fields whose second field starts with
// "TG:", forwards the talkgroup over the data channel.
package p25log

import (
	"bufio"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
)

const (
	moduleCode      = 4
	protocolVersion = 1
)

func init() {
	modules.Register("p25log", func() modules.Descriptor { return New() })
}

// Module is the p25log pseudo-module adapter.
type Module struct {
	mu       sync.Mutex
	conn     net.PacketConn
	stopCh   chan struct{}
	printAll bool
}

// New returns an uninitialized p25log module.
func New() *Module { return &Module{} }

func (m *Module) Name() string        { return "p25log" }
func (m *Module) Description() string { return "trunk-recorder talkgroup log listener" }
func (m *Module) DocString() string {
	return "Usage: run p25log <devid> <port>\ndevid must be a pseudo id (>= 9000).\n" +
		"Listens on the given UDP port for trunk-recorder log lines and reports talkgroups."
}
func (m *Module) SupportedDeviceKinds() []devices.Kind { return []devices.Kind{devices.Pseudo} }
func (m *Module) IsPseudo() bool                       { return true }
func (m *Module) IsProxy() bool                        { return false }
func (m *Module) Settings() map[string]any {
	return map[string]any{"print_all": m.printAll}
}
func (m *Module) Commands() []modules.Command { return nil }

func (m *Module) Init(cfg *config.Config) error { return nil }

func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	port, err := strconv.Atoi(strings.TrimSpace(argline))
	if err != nil {
		return false
	}

	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}

	m.mu.Lock()
	m.conn = conn
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	go m.listen(ctx, conn)
	return true
}

var talkgroupPattern = regexp.MustCompile(`^TG:\s*(\S+)`)

func (m *Module) listen(ctx *station.Context, conn net.PacketConn) {
	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}

		scanner := bufio.NewScanner(strings.NewReader(string(buf[:n])))
		for scanner.Scan() {
			fields := strings.Split(scanner.Text(), "\t")
			if len(fields) != 4 {
				continue
			}

			match := talkgroupPattern.FindStringSubmatch(fields[1])
			if match == nil {
				continue
			}

			ctx.Connector.SendData(map[string]any{
				"module":     moduleCode,
				"protocol":   protocolVersion,
				"talkgroup":  match[1],
			})
		}
	}
}

func (m *Module) Stop(devID any, reg *devices.Registry) bool {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return false
	}
	conn.Close()
	reg.Free(devID)
	return true
}

func (m *Module) Shutdown() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (m *Module) Setting(name string, value *string) any {
	if name != "print_all" {
		return nil
	}
	if value != nil {
		m.printAll = *value == "1"
	}
	return m.printAll
}
