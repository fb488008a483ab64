package main

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr            string
	TLSCert         string
	TLSKey          string
	RoomIdleTimeout time.Duration
	SweepInterval   time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	RateLimitPerIP  float64
}

func LoadConfig() *Config {
	return &Config{
		Addr:            envStr("LOBBY_ADDR", ":8080"),
		TLSCert:         envStr("LOBBY_TLS_CERT", ""),
		TLSKey:          envStr("LOBBY_TLS_KEY", ""),
		RoomIdleTimeout: time.Duration(envInt("LOBBY_ROOM_IDLE_TIMEOUT", 3600)) * time.Second,
		SweepInterval:   time.Duration(envInt("LOBBY_SWEEP_INTERVAL", 60)) * time.Second,
		PingInterval:    time.Duration(envInt("LOBBY_PING_INTERVAL_MS", 5000)) * time.Millisecond,
		MaxMessageSize:  int64(envInt("LOBBY_MAX_MESSAGE_SIZE", 65536)),
		RateLimitPerIP:  float64(envInt("LOBBY_RATE_LIMIT_PER_IP", 10)),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
