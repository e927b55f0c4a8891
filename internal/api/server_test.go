package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/tenma-bridge/internal/datalog"
	"github.com/tamzrod/tenma-bridge/internal/psu"
	"github.com/tamzrod/tenma-bridge/internal/serializer"
	"github.com/tamzrod/tenma-bridge/internal/state"
	"github.com/tamzrod/tenma-bridge/internal/transport"
)

type fakeDevice struct {
	mu    sync.Mutex
	cmds  []psu.Command
	err   error
	state state.DeviceState
}

func (f *fakeDevice) Execute(cmd psu.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return f.err
}

func (f *fakeDevice) Snapshot() state.DeviceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeDevice) Identity() string { return "TENMA 72-2540 V2.1" }

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T, cfg Config) (*Server, *fakeDevice, *datalog.Log) {
	t.Helper()
	dev := &fakeDevice{}
	dev.state.OutputEnabled = state.Some(true)
	dl := datalog.New(0)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "tenma_queue_depth 0\n")
	})
	return New(cfg, dev, dl, metrics, quietLogger()), dev, dl
}

func do(h http.Handler, method, target, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	rec := do(s.Router(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"tenma-bridge"}`, rec.Body.String())
}

func TestState(t *testing.T) {
	s, _, dl := newTestServer(t, Config{})
	dl.Start()
	dl.Append(datalog.Entry{})
	s.SetOnDuration(1234)

	rec := do(s.Router(), http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "periodic", msg["messageid"])
	assert.Equal(t, "TENMA 72-2540 V2.1", msg["identity"])
	assert.Equal(t, true, msg["logging"])
	assert.Equal(t, 1.0, msg["logline"])
	assert.Equal(t, 1234.0, msg["onduration"])

	st := msg["state"].(map[string]interface{})
	assert.Equal(t, true, st["outputEnabled"])
	assert.Nil(t, st["tracking"])
}

func TestCommand_Forwarded(t *testing.T) {
	s, dev, _ := newTestServer(t, Config{})

	rec := do(s.Router(), http.MethodPost, "/api/command", `{"command":"setVoltage","channel":1,"value":"05.00"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, dev.cmds, 1)
	assert.Equal(t, psu.Command{Name: "setVoltage", Channel: 1, Value: "05.00"}, dev.cmds[0])
}

func TestCommand_LogTogglesStayLocal(t *testing.T) {
	s, dev, dl := newTestServer(t, Config{})
	h := s.Router()

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/command", `{"command":"startLog"}`).Code)
	assert.True(t, dl.Enabled())

	dl.Append(datalog.Entry{})
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/command", `{"command":"clearLog"}`).Code)
	assert.Equal(t, 0, dl.Len())

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/command", `{"command":"stopLog"}`).Code)
	assert.False(t, dl.Enabled())

	assert.Empty(t, dev.cmds)
}

func TestCommand_ErrorStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown", fmt.Errorf("%w: %q", psu.ErrUnknownCommand, "explode"), http.StatusBadRequest},
		{"bad channel", fmt.Errorf("%w: channel 3", psu.ErrInvalidArgument), http.StatusBadRequest},
		{"transport", fmt.Errorf("psu: OUT1: %w", &transport.Error{Op: "write", Err: errors.New("unplugged")}), http.StatusBadGateway},
		{"closed", serializer.ErrClosed, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, dev, _ := newTestServer(t, Config{})
			dev.err = tc.err

			rec := do(s.Router(), http.MethodPost, "/api/command", `{"command":"outputOn"}`)
			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCommand_InvalidJSON(t *testing.T) {
	s, dev, _ := newTestServer(t, Config{})

	rec := do(s.Router(), http.MethodPost, "/api/command", `{"command":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, dev.cmds)
}

func TestLogDownload(t *testing.T) {
	s, _, dl := newTestServer(t, Config{})
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	dl.Start()
	dl.Append(datalog.Entry{Time: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)})

	rec := do(s.Router(), http.MethodGet, "/log", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="TENMA 72-2540 V2.12024-03-01T12:00:00.000Zlog.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, 2, strings.Count(rec.Body.String(), "\r\n"))
}

func TestCORS(t *testing.T) {
	s, _, _ := newTestServer(t, Config{AllowOrigin: "http://127.0.0.1:8044"})
	h := s.Router()

	rec := do(h, http.MethodGet, "/health", "", "Referer", "http://lab.local:8080///")
	assert.Equal(t, "http://lab.local:8080", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(h, http.MethodGet, "/health", "")
	assert.Equal(t, "http://127.0.0.1:8044", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(h, http.MethodOptions, "/api/command", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRootRedirect(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})

	rec := do(s.Router(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "index.html", rec.Header().Get("Location"))
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>psu</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	s, _, _ := newTestServer(t, Config{StaticDir: dir})
	h := s.Router()

	rec := do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>psu</html>", rec.Body.String())

	rec = do(h, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	// API routes win over the file server.
	rec = do(h, http.MethodGet, "/health", "")
	assert.Contains(t, rec.Body.String(), "tenma-bridge")
}

func TestMetricsMounted(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	rec := do(s.Router(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenma_queue_depth")
}

func TestStream(t *testing.T) {
	s, _, _ := newTestServer(t, Config{BroadcastInterval: 10 * time.Millisecond})
	s.SetOnDuration(42)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var events, data []string
	for sc.Scan() && len(data) < 2 {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}

	require.Len(t, data, 2)
	assert.Equal(t, []string{"periodic", "periodic"}, events)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(data[0]), &msg))
	assert.Equal(t, int64(42), msg.OnDuration)
	assert.Equal(t, MessagePeriodic, msg.MessageID)
}
