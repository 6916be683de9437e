package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/influxdata/influxdb-client-go/api/write"

	"github.com/w1xm/areg_rotator/motion"
	"github.com/w1xm/areg_rotator/rotator"
)

func TestFlattenStatus(t *testing.T) {
	var status interface{}
	if err := json.Unmarshal([]byte(`{
		"current": {"heading": 12.5, "pitch": -3},
		"movement_enabled": true,
		"filter": {"rejected": 4},
		"history": [1, 2]
	}`), &status); err != nil {
		t.Fatal(err)
	}
	got := make(map[string]interface{})
	flattenStatus(got, status, "")
	want := map[string]interface{}{
		"current.heading":  12.5,
		"current.pitch":    -3.0,
		"movement_enabled": true,
		"filter.rejected":  4.0,
		"history.0":        1.0,
		"history.1":        2.0,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("flattenStatus: got(-)/want(+):\n%s", diff)
	}
}

func TestFlattenScalar(t *testing.T) {
	got := make(map[string]interface{})
	flattenStatus(got, 5.0, "")
	if len(got) != 0 {
		t.Errorf("flattenStatus(scalar) = %v, want empty", got)
	}
}

type fakeWriteAPI struct {
	points  []*write.Point
	flushed int
}

func (f *fakeWriteAPI) WriteRecord(string)        {}
func (f *fakeWriteAPI) WritePoint(p *write.Point) { f.points = append(f.points, p) }
func (f *fakeWriteAPI) Flush()                    { f.flushed++ }
func (f *fakeWriteAPI) Close()                    {}
func (f *fakeWriteAPI) Errors() <-chan error      { return nil }

func fields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

// statusServer serves statuses on a websocket and then closes it.
func statusServer(t *testing.T, statuses ...interface{}) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		for _, s := range statuses {
			if err := conn.WriteJSON(s); err != nil {
				t.Error(err)
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestLogData(t *testing.T) {
	tick := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	url := statusServer(t,
		motion.Status{
			Current:         rotator.Orientation{Heading: 45, Pitch: 10},
			Target:          rotator.Target{Azimuth: 90, Elevation: 10},
			AzimuthSpeed:    255,
			MovementEnabled: true,
			Time:            tick,
		},
		motion.Status{Time: tick.Add(100 * time.Millisecond)},
	)
	w := &fakeWriteAPI{}
	n, err := logData(w, url)
	if err == nil {
		t.Error("logData returned nil error after the server closed")
	}
	if n != 2 || len(w.points) != 2 {
		t.Fatalf("logged %d statuses, %d points; want 2", n, len(w.points))
	}
	if w.flushed != 1 {
		t.Errorf("flushed %d times, want 1", w.flushed)
	}

	p := w.points[0]
	if p.Name() != measurement {
		t.Errorf("measurement = %q, want %q", p.Name(), measurement)
	}
	if !p.Time().Equal(tick) {
		t.Errorf("time = %v, want %v", p.Time(), tick)
	}
	got := fields(p)
	for k, want := range map[string]interface{}{
		"current.heading":  45.0,
		"target.azimuth":   90.0,
		"azimuth_speed":    255.0,
		"movement_enabled": true,
	} {
		if got[k] != want {
			t.Errorf("field %s = %v, want %v", k, got[k], want)
		}
	}
	if _, ok := got["time"]; ok {
		t.Error("time written as a field")
	}
	if !w.points[1].Time().Equal(tick.Add(100 * time.Millisecond)) {
		t.Errorf("second point time = %v", w.points[1].Time())
	}
}

func TestLogDataDialError(t *testing.T) {
	w := &fakeWriteAPI{}
	if _, err := logData(w, "ws://127.0.0.1:1/api/ws"); err == nil {
		t.Error("logData succeeded without a server")
	}
	if len(w.points) != 0 {
		t.Errorf("wrote %d points", len(w.points))
	}
}
