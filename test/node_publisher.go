package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Simulated node frame, matching the gateway's canonical frame shape
type nodeFrame struct {
	NodeID       string  `json:"nodeId"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
	BatteryLevel int     `json:"batteryLevel"`
	RSSI         int     `json:"rssi"`
}

// Realistic greenhouse ranges
const (
	tempMin, tempMax = 18.0, 35.0
	humMin, humMax   = 40.0, 90.0
	soilMin, soilMax = 20.0, 80.0
)

type simNode struct {
	frame nodeFrame
}

func newSimNode(id string) *simNode {
	return &simNode{frame: nodeFrame{
		NodeID:       id,
		Temperature:  randFloat(tempMin, tempMax),
		Humidity:     randFloat(humMin, humMax),
		SoilMoisture: randFloat(soilMin, soilMax),
		BatteryLevel: 20 + rand.Intn(81),
		RSSI:         -90 + rand.Intn(61),
	}}
}

// next drifts values slightly so consecutive frames look like a real sensor
func (n *simNode) next() []byte {
	n.frame.Temperature = clamp(n.frame.Temperature+randFloat(-0.5, 0.5), tempMin, tempMax)
	n.frame.Humidity = clamp(n.frame.Humidity+randFloat(-2, 2), humMin, humMax)
	n.frame.SoilMoisture = clamp(n.frame.SoilMoisture+randFloat(-1, 1), soilMin, soilMax)
	if rand.Intn(20) == 0 && n.frame.BatteryLevel > 1 {
		n.frame.BatteryLevel--
	}
	n.frame.RSSI = -90 + rand.Intn(61)
	payload, _ := json.Marshal(n.frame)
	return payload
}

func randFloat(min, max float64) float64 {
	return min + rand.Float64()*(max-min)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "bridge broker address")
	username := flag.String("username", "", "broker username")
	password := flag.String("password", "", "broker password")
	meshTopic := flag.String("mesh-topic", "radio/mesh/frames", "mesh frame topic")
	loraTopic := flag.String("lora-topic", "radio/lora/frames", "lora frame topic")
	rearmTopic := flag.String("rearm-topic", "radio/lora/rearm", "lora re-arm topic")
	interval := flag.Duration("interval", 10*time.Second, "publish interval per node")
	meshNodes := flag.Int("mesh-nodes", 2, "number of simulated mesh nodes")
	loraNodes := flag.Int("lora-nodes", 1, "number of simulated lora nodes")
	flag.Parse()

	opts := paho.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("node-sim-%d", time.Now().Unix()))
	if *username != "" {
		opts.SetUsername(*username)
		opts.SetPassword(*password)
	}
	opts.SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Printf("failed to connect to broker: %v\n", token.Error())
		os.Exit(1)
	}
	fmt.Printf("connected to broker: %s\n", *broker)

	// The lora radio daemon delivers one frame per arm cycle; emulate that by
	// holding lora frames until the gateway re-arms reception
	var loraArmed atomic.Bool
	loraArmed.Store(true)
	client.Subscribe(*rearmTopic, 0, func(_ paho.Client, _ paho.Message) {
		loraArmed.Store(true)
	})

	var nodes []*simNode
	var topics []string
	for i := 0; i < *meshNodes; i++ {
		nodes = append(nodes, newSimNode(fmt.Sprintf("mesh-node-%02d", i+1)))
		topics = append(topics, *meshTopic)
	}
	for i := 0; i < *loraNodes; i++ {
		nodes = append(nodes, newSimNode(fmt.Sprintf("lora-node-%02d", i+1)))
		topics = append(topics, *loraTopic)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("publishing %d mesh + %d lora nodes every %s\n", *meshNodes, *loraNodes, *interval)
	for {
		select {
		case <-ticker.C:
			for i, node := range nodes {
				if topics[i] == *loraTopic && !loraArmed.Swap(false) {
					fmt.Printf("%s: lora receiver not armed, frame held\n", node.frame.NodeID)
					continue
				}
				payload := node.next()
				client.Publish(topics[i], 0, false, payload)
				fmt.Printf("%s -> %s: %s\n", node.frame.NodeID, topics[i], payload)
			}
		case <-sigChan:
			client.Disconnect(250)
			fmt.Println("simulator stopped")
			return
		}
	}
}
