package connector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory stand-in for *websocket.Conn driven by queued
// replies, so the command-channel retry/timeout logic can be tested
// without opening a real socket.
type fakeConn struct {
	writes  []map[string]any
	replies []map[string]any
	writeErr error
	readErr  error
}

func (f *fakeConn) WriteJSON(v any) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	b, _ := json.Marshal(v)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	f.writes = append(f.writes, m)
	return nil
}

func (f *fakeConn) ReadJSON(v any) error {
	if f.readErr != nil {
		return f.readErr
	}
	if len(f.replies) == 0 {
		return errNoReply
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]

	b, _ := json.Marshal(reply)
	return json.Unmarshal(b, v)
}

func (f *fakeConn) SetReadDeadline(t time.Time) error { return nil }
func (f *fakeConn) Close() error                       { return nil }

type errString string

func (e errString) Error() string { return string(e) }

const errNoReply = errString("no reply queued")

func newTestConnector(cmdConn *fakeConn) *Connector {
	c := New(nil, "", "", "station1", "secret", nil, nil, logrus.New())
	c.cmdConn = cmdConn
	c.setState(Connected)
	return c
}

func TestSendCommandSuccess(t *testing.T) {
	conn := &fakeConn{replies: []map[string]any{{"reply": "ok"}}}
	c := newTestConnector(conn)

	reply, err := c.SendCommand(map[string]any{"request": ReqHeartbeat})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply["reply"])

	require.Len(t, conn.writes, 1)
	assert.Equal(t, "station1", conn.writes[0]["stationid"])
	assert.NotEmpty(t, conn.writes[0]["sign"])
	assert.Len(t, conn.writes[0]["rand"], 8)
}

func TestSendCommandRetriesThenFails(t *testing.T) {
	conn := &fakeConn{} // no replies queued at all
	c := newTestConnector(conn)

	reply, err := c.SendCommand(map[string]any{"request": ReqHeartbeat})
	require.Error(t, err)
	assert.Equal(t, "error", reply["reply"])
	assert.Equal(t, "rxerror", reply["error"])
}

func TestSendCommandNotConnected(t *testing.T) {
	conn := &fakeConn{}
	c := newTestConnector(conn)
	c.setState(Disconnected)

	reply, err := c.SendCommand(map[string]any{"request": ReqMessage})
	require.Error(t, err)
	assert.Equal(t, "not_connected", reply["error"])
}

func TestInterestingAddListDel(t *testing.T) {
	conn := &fakeConn{replies: []map[string]any{{"reply": "ok"}, {"reply": "ok"}}}
	c := newTestConnector(conn)

	require.NoError(t, c.InterestingAdd(433.92e6, "doorbell"))
	list := c.InterestingList()
	require.Len(t, list, 1)
	assert.Equal(t, "doorbell", list[0].Name)

	require.NoError(t, c.InterestingDel(433.92e6))
	assert.Empty(t, c.InterestingList())
}

func TestFetchInteresting(t *testing.T) {
	conn := &fakeConn{replies: []map[string]any{{"reply": "ok", "freqs": "433920000 doorbell 146520000 simplex"}}}
	c := newTestConnector(conn)

	entries, err := c.FetchInteresting()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 146520000.0, entries[0].Freq)
	assert.Equal(t, "simplex", entries[0].Name)
	assert.Equal(t, 433920000.0, entries[1].Freq)
}

func TestFetchInterestingError(t *testing.T) {
	conn := &fakeConn{replies: []map[string]any{{"reply": "error", "error": "db down"}}}
	c := newTestConnector(conn)

	_, err := c.FetchInteresting()
	assert.Error(t, err)
}

func TestSign(t *testing.T) {
	c := New(nil, "", "", "station1", "secret", nil, nil, logrus.New())
	randHex, sign := c.sign()
	assert.Len(t, randHex, 8)
	assert.Len(t, sign, 12)
}
