package snapshot

import (
	"context"
	"fmt"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// NetSample is one periodic network telemetry record.
type NetSample struct {
	TS             time.Time        `json:"ts"`
	Host           string           `json:"host"`
	Interfaces     []InterfaceStats `json:"interfaces"`
	ListeningPorts int              `json:"listening_ports"`
	TCPStates      map[string]int   `json:"tcp_states,omitempty"`
}

type InterfaceStats struct {
	Name        string `json:"name"`
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	ErrIn       uint64 `json:"err_in"`
	ErrOut      uint64 `json:"err_out"`
	DropIn      uint64 `json:"drop_in"`
	DropOut     uint64 `json:"drop_out"`
}

// CollectNetSample gathers per-interface counters and TCP connection state
// counts. Read-only; no packet capture involved.
func CollectNetSample(ctx context.Context, hostname string) (*NetSample, error) {
	sample := &NetSample{
		TS:        time.Now(),
		Host:      hostname,
		TCPStates: make(map[string]int),
	}

	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("snapshot: io counters: %w", err)
	}
	for _, c := range counters {
		sample.Interfaces = append(sample.Interfaces, InterfaceStats{
			Name:        c.Name,
			BytesSent:   c.BytesSent,
			BytesRecv:   c.BytesRecv,
			PacketsSent: c.PacketsSent,
			PacketsRecv: c.PacketsRecv,
			ErrIn:       c.Errin,
			ErrOut:      c.Errout,
			DropIn:      c.Dropin,
			DropOut:     c.Dropout,
		})
	}

	if conns, err := psnet.ConnectionsWithContext(ctx, "tcp"); err == nil {
		for _, conn := range conns {
			sample.TCPStates[conn.Status]++
			if conn.Status == "LISTEN" {
				sample.ListeningPorts++
			}
		}
	}

	return sample, nil
}
