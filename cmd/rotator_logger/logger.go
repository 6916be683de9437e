// Command rotator_logger copies the rotator status stream into InfluxDB.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
)

const measurement = "rotator.status"

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	client := influxdb2.NewClient(getenv("INFLUX_SERVER", "http://localhost:9999"), os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Get non-blocking write client
	writeAPI := client.WriteAPI(getenv("INFLUX_ORG", "areg"), getenv("INFLUX_BUCKET", "rotator.raw"))
	defer writeAPI.Close()
	go func() {
		for err := range writeAPI.Errors() {
			log.Printf("write error: %v", err)
		}
	}()
	url := getenv("ROTATOR_ADDRESS", "ws://localhost:8503/api/ws")
	for {
		n, err := logData(writeAPI, url)
		log.Printf("logged %d statuses from %s: %v", n, url, err)
		time.Sleep(1 * time.Second)
	}
}

// flattenStatus turns nested JSON into dotted field names, e.g. current.heading.
func flattenStatus(fields map[string]interface{}, status interface{}, prefix string) {
	switch status := status.(type) {
	case map[string]interface{}:
		for k, v := range status {
			flattenStatus(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for k, v := range status {
			flattenStatus(fields, v, fmt.Sprintf("%s.%d", prefix, k))
		}
	default:
		if prefix == "" {
			return
		}
		fields[prefix[1:]] = status
	}
}

// statusPoint converts one status message into a point. The controller's
// tick time becomes the timestamp; received is used when it is missing.
func statusPoint(status interface{}, received time.Time) *write.Point {
	fields := make(map[string]interface{})
	flattenStatus(fields, status, "")

	ts := received
	if s, ok := fields["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil && !t.IsZero() {
			ts = t
		}
		delete(fields, "time")
	}
	return influxdb2.NewPoint(measurement, nil, fields, ts)
}

// logData writes every status received from url until the connection
// fails. It returns the number of points written.
func logData(writeAPI api.WriteAPI, url string) (int, error) {
	defer writeAPI.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	for n := 0; ; n++ {
		var status interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return n, err
		}
		// write asynchronously
		writeAPI.WritePoint(statusPoint(status, time.Now()))
	}
}
