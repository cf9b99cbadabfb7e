package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"liyu1981.xyz/device-events-service/pkg/common"
	iotGrpc "liyu1981.xyz/device-events-service/pkg/grpc"
)

var maxDevices int = 1000
var eventsPerDevice int = 5
var deviceIDBase int = 9_000_000
var httpHostPort string = "127.0.0.1:1080"
var grpcHostPort string = "127.0.0.1:10801"

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
var rndMu sync.Mutex

var rejected atomic.Int64

func main() {
	deviceIDs := common.Mapper(rnd.Perm(maxDevices), func(i int) string {
		return strconv.Itoa(deviceIDBase + i)
	})
	fmt.Printf("generated %v device IDs\n", maxDevices)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		log.Fatal("Failed to connect to HTTP server:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatal("HTTP server not available")
	}

	fmt.Printf("http server verified\n")

	conn, err := grpc.NewClient(grpcHostPort, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal("Failed to connect to gRPC server:", err)
	}
	defer conn.Close()
	health, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: iotGrpc.ServiceName})
	if err != nil || health.Status != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("gRPC health check failed: %v %v", err, health)
	}

	fmt.Printf("gRPC server verified and serving\n")

	var startTime time.Time
	var usedTime time.Duration

	startTime = time.Now()
	wg := sync.WaitGroup{}
	for i := range maxDevices {
		wg.Add(1)
		go func() {
			for range eventsPerDevice {
				postEvent(deviceIDs[i])
			}
			fmt.Printf("\rposted events for device %v", i)
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	total := maxDevices * eventsPerDevice
	fmt.Printf(
		"\rposted %v events for %v devices: used time=%v seconds, throughput=%v action/second, rate limited=%v\n",
		total, maxDevices, usedTime.Seconds(), float64(total)/usedTime.Seconds(), rejected.Load(),
	)

	startTime = time.Now()
	wg = sync.WaitGroup{}
	for i := range maxDevices {
		wg.Add(1)
		go func() {
			doAction(deviceIDs[i])
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\n\rdid actions for %v devices: used time=%v seconds, throughput=%v action/second\n",
		maxDevices, usedTime.Seconds(), float64(maxDevices*3)/usedTime.Seconds(),
	)
}

func rndInt(n int) int {
	rndMu.Lock()
	defer rndMu.Unlock()
	return rnd.Intn(n)
}

func rndFloat64(min, max float64, decimal int) float64 {
	rndMu.Lock()
	val := min + rnd.Float64()*(max-min)
	rndMu.Unlock()
	multiplier := math.Pow10(decimal)
	return math.Round(val*multiplier) / multiplier
}

func postEvent(deviceID string) {
	eventType := 1 + rndInt(29)
	payload := map[string]any{
		"DEVICE_ID": deviceID,
		"ID":        uuid.NewString(),
		"TS":        time.Now().UnixMilli(),
		"Type":      eventType,
		"Details": map[string]any{
			"voltage":     rndFloat64(180.0, 250.0, 1),
			"description": fmt.Sprintf("benchmark event %d", eventType),
		},
	}

	jsonData, _ := json.Marshal(payload)
	resp, err := http.Post(fmt.Sprintf("http://%s/events", httpHostPort), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		fmt.Printf("\nerror: %v\n", err)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusTooManyRequests:
		rejected.Add(1)
	default:
		fmt.Printf("\nresponse status code != 201: %v\n", resp.Status)
	}
}

func doAction(deviceID string) {
	actions := []func(){
		func() { postEvent(deviceID) },
		genListEventsAction(deviceID),
		genLatestEventsAction(deviceID),
	}
	actionNames := []string{
		"PostEvent",
		"ListEvents",
		"LatestEventsByType",
	}
	rndMu.Lock()
	rnd.Shuffle(len(actions), func(i, j int) {
		actions[i], actions[j] = actions[j], actions[i]
		actionNames[i], actionNames[j] = actionNames[j], actionNames[i]
	})
	rndMu.Unlock()
	for index, action := range actions {
		action()
		fmt.Printf("\rexecuted action %v for device %v", actionNames[index], deviceID)
		time.Sleep(time.Duration(100+rndInt(1000)) * time.Millisecond)
	}
}

func getOK(url string) {
	resp, err := http.Get(url)
	if err != nil {
		fmt.Printf("\nerror: %v\n", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("\nresponse status code != 200: %v\n", resp.Status)
	}
}

func genListEventsAction(deviceID string) func() {
	return func() {
		getOK(fmt.Sprintf("http://%s/events?deviceIdRange=%s-%s&search=alarm&limit=20", httpHostPort, deviceID, deviceID))
	}
}

func genLatestEventsAction(deviceID string) func() {
	return func() {
		getOK(fmt.Sprintf("http://%s/events/latest?deviceId=%s", httpHostPort, deviceID))
	}
}
