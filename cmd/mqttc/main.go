// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/fatih/color"

	mqtt "github.com/wiremq/client"
	"github.com/wiremq/client/config"
	"github.com/wiremq/client/packets"
)

func main() {
	server := flag.String("server", "localhost:1883", "server address (host:port)")
	configFile := flag.String("config", "", "path to a json or yaml configuration file")
	clientID := flag.String("id", "", "client identifier (generated when empty)")
	topic := flag.String("topic", "#", "topic to publish to or filter to subscribe with")
	qos := flag.Int("qos", 0, "quality of service (0, 1 or 2)")
	keepalive := flag.Int("keepalive", 60, "keepalive interval in seconds (0 disables)")
	retain := flag.Bool("retain", false, "set the retain flag when publishing")
	message := flag.String("m", "", "message payload to publish; subscribes when empty")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	address := *server
	opts := mqtt.Options{
		ClientID:     *clientID,
		Keepalive:    uint16(*keepalive),
		CleanSession: true,
		Logger:       log,
	}

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			log.Error("failed to read config", "error", err)
			os.Exit(1)
		}

		cfg, err := config.FromBytes(data)
		if err != nil {
			log.Error("failed to parse config", "error", err)
			os.Exit(1)
		}

		address = cfg.Address
		opts = cfg.Options
		opts.Logger = log
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s, err := mqtt.Dial(ctx, address, opts)
	cancel()
	if err != nil {
		log.Error("failed to connect", "server", address, "error", err)
		os.Exit(1)
	}

	fmt.Println(color.GreenString("connected to %s", address))

	if *message != "" {
		publish(s, *topic, byte(*qos), *retain, []byte(*message), log)
		return
	}

	subscribe(s, *topic, byte(*qos), log)
}

// publish sends one message and disconnects. A qos 0 publish is
// fire-and-forget; higher levels wait out the acknowledgement handshake.
func publish(s *mqtt.Session, topic string, qos byte, retain bool, payload []byte, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pk := packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Publish, Qos: qos, Retain: retain},
		TopicName:   topic,
		Payload:     payload,
	}

	var err error
	if qos == 0 {
		err = s.Send(ctx, pk)
	} else {
		pk.PacketID = s.NextPacketID()
		_, err = s.SendReceive(ctx, pk, pk.PacketID)
	}
	if err != nil {
		log.Error("publish failed", "topic", topic, "error", err)
		os.Exit(1)
	}

	fmt.Println(color.CyanString("published %d bytes to %s", len(payload), topic))
	_ = s.Disconnect(ctx)
}

// subscribe prints every message arriving on the filter until interrupted.
func subscribe(s *mqtt.Session, filter string, qos byte, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	id := s.NextPacketID()
	res, err := s.SendReceive(ctx, packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Subscribe),
		PacketID:    id,
		Topics:      []string{filter},
		Qoss:        []byte{qos},
	}, id)
	cancel()
	if err != nil {
		log.Error("subscribe failed", "filter", filter, "error", err)
		os.Exit(1)
	}

	fmt.Println(color.GreenString("subscribed to %s, granted qos %v", filter, res.GrantedQoss))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case msg, ok := <-s.Messages():
			if !ok {
				if err := s.Err(); err != nil {
					log.Error("session ended", "error", err)
					os.Exit(1)
				}
				return
			}
			fmt.Printf("%s %s\n", color.YellowString("[%s]", msg.Topic), msg.Payload)
		case <-sigs:
			fmt.Println(color.RedString("caught signal, disconnecting"))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.Disconnect(ctx)
			cancel()
			return
		}
	}
}
