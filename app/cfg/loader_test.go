package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestSetForTestingAndGet(t *testing.T) {
	SetForTesting(&Cfg{
		DBPath:            "./test.db",
		Port:              "8081",
		WorkerCount:       2,
		SchedulerInterval: 60,
		UserAgent:         "test-agent/1.0",
		FetchTimeout:      5,
		FetchMaxBytes:     100_000,
		FetchRetries:      1,
		DarkFetchTimeout:  10,
		DarkFetchMaxBytes: 50_000,
		DarkFetchRetries:  1,
		DarkSocksAddr:     "127.0.0.1:9050",
		Command:           "serve",
	})

	c := Get()
	if c.DBPath != "./test.db" {
		t.Errorf("Expected DB path './test.db', got %q", c.DBPath)
	}
	if c.Port != "8081" {
		t.Errorf("Expected port '8081', got %q", c.Port)
	}
	if c.WorkerCount != 2 {
		t.Errorf("Expected worker count 2, got %d", c.WorkerCount)
	}
	if c.FetchTimeout != 5 || c.FetchMaxBytes != 100_000 {
		t.Errorf("Expected fetch limits 5/100000, got %d/%d", c.FetchTimeout, c.FetchMaxBytes)
	}
	if c.Command != "serve" {
		t.Errorf("Expected command 'serve', got %q", c.Command)
	}
}
