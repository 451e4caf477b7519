// position-simulator replays a drive as UDP position datagrams, for
// testing roadwatch without a GPS receiver. It either loops over a route
// file (a JSON array of points) or drives a synthetic loop around a
// starting coordinate.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type routePoint struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	SpeedKmh    *float64 `json:"speed_kmh,omitempty"`
	HeadingDeg  *float64 `json:"heading_deg,omitempty"`
	TimestampMs int64    `json:"timestamp_ms,omitempty"`
}

func main() {
	target := flag.String("target", "127.0.0.1:5598", "UDP address roadwatch is listening on")
	routeFile := flag.String("route", "", "JSON route file to replay (loops forever)")
	interval := flag.Duration("interval", time.Second, "Delay between datagrams")
	lat := flag.Float64("lat", 39.0, "Center latitude for the synthetic loop")
	lon := flag.Float64("lon", 35.0, "Center longitude for the synthetic loop")
	speed := flag.Float64("speed", 90, "Speed in km/h for the synthetic loop")
	flag.Parse()

	route, err := loadRoute(*routeFile, *lat, *lon, *speed, *interval)
	if err != nil {
		log.Fatalf("could not build route: %v", err)
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("could not dial %s: %v", *target, err)
	}
	defer conn.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("replaying %d points to %s every %v\n", len(route), *target, *interval)

	i := 0
	for {
		select {
		case <-ticker.C:
			point := route[i%len(route)]
			// Stamp at send time; replaying a route file's recorded
			// timestamps on a loop would hand the engine a clock that
			// jumps backwards every lap.
			point.TimestampMs = time.Now().UnixMilli()
			payload, err := json.Marshal(point)
			if err != nil {
				log.Fatalf("could not encode point: %v", err)
			}
			if _, err := conn.Write(payload); err != nil {
				log.Printf("send failed: %v", err)
			}
			i++
		case <-sigs:
			fmt.Println("\nstopping")
			return
		}
	}
}

// loadRoute reads a route file, or synthesizes a circular drive roughly
// one kilometer across when no file is given.
func loadRoute(path string, lat, lon, speedKmh float64, interval time.Duration) ([]routePoint, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var route []routePoint
		if err := json.Unmarshal(raw, &route); err != nil {
			return nil, err
		}
		if len(route) == 0 {
			return nil, fmt.Errorf("route file %s has no points", path)
		}
		return route, nil
	}

	// Distance covered per tick determines how many points make one lap.
	const radiusM = 500.0
	stepM := speedKmh / 3.6 * interval.Seconds()
	points := int(math.Max(8, 2*math.Pi*radiusM/stepM))

	route := make([]routePoint, 0, points)
	for i := 0; i < points; i++ {
		angle := 2 * math.Pi * float64(i) / float64(points)
		heading := math.Mod(math.Atan2(math.Cos(angle), -math.Sin(angle))*180/math.Pi+360, 360)
		s := speedKmh
		h := heading
		route = append(route, routePoint{
			Lat:        lat + radiusM/111320.0*math.Sin(angle),
			Lon:        lon + radiusM/(111320.0*math.Cos(lat*math.Pi/180))*math.Cos(angle),
			SpeedKmh:   &s,
			HeadingDeg: &h,
		})
	}
	return route, nil
}
