// Package snapshot collects baseline host telemetry: a one-shot inventory
// of the machine and periodic network samples.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Inventory is a point-in-time picture of the local host.
type Inventory struct {
	Timestamp     time.Time     `json:"timestamp"`
	Hostname      string        `json:"hostname"`
	OS            OSInfo        `json:"os"`
	UptimeSeconds uint64        `json:"uptime_seconds"`
	CPU           CPUInfo       `json:"cpu"`
	Memory        MemoryInfo    `json:"memory"`
	Disks         []DiskInfo    `json:"disks"`
	Interfaces    []NetworkInfo `json:"network_interfaces"`
}

type OSInfo struct {
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	Family          string `json:"family"`
	KernelVersion   string `json:"kernel_version"`
	KernelArch      string `json:"kernel_arch"`
}

type CPUInfo struct {
	Model        string  `json:"model"`
	LogicalCores int     `json:"logical_cores"`
	MHz          float64 `json:"mhz"`
}

type MemoryInfo struct {
	TotalBytes     uint64 `json:"total_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
}

type DiskInfo struct {
	Device      string  `json:"device"`
	Mountpoint  string  `json:"mountpoint"`
	Fstype      string  `json:"fstype"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

type NetworkInfo struct {
	Name  string   `json:"name"`
	MAC   string   `json:"mac,omitempty"`
	Addrs []string `json:"addrs,omitempty"`
}

// CollectInventory gathers the inventory. Individual probes that fail are
// left zero-valued rather than failing the whole snapshot; a partial
// inventory is still useful.
func CollectInventory(ctx context.Context) (*Inventory, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: host info: %w", err)
	}

	inv := &Inventory{
		Timestamp:     time.Now(),
		Hostname:      info.Hostname,
		UptimeSeconds: info.Uptime,
		OS: OSInfo{
			Platform:        info.Platform,
			PlatformVersion: info.PlatformVersion,
			Family:          info.PlatformFamily,
			KernelVersion:   info.KernelVersion,
			KernelArch:      info.KernelArch,
		},
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		inv.CPU.Model = cpus[0].ModelName
		inv.CPU.MHz = cpus[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		inv.CPU.LogicalCores = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		inv.Memory = MemoryInfo{
			TotalBytes:     vm.Total,
			AvailableBytes: vm.Available,
			UsedBytes:      vm.Used,
		}
	}

	if parts, err := disk.PartitionsWithContext(ctx, false); err == nil {
		for _, p := range parts {
			d := DiskInfo{Device: p.Device, Mountpoint: p.Mountpoint, Fstype: p.Fstype}
			if usage, err := disk.UsageWithContext(ctx, p.Mountpoint); err == nil {
				d.TotalBytes = usage.Total
				d.UsedBytes = usage.Used
				d.UsedPercent = usage.UsedPercent
			}
			inv.Disks = append(inv.Disks, d)
		}
	}

	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		for _, iface := range ifaces {
			ni := NetworkInfo{Name: iface.Name, MAC: iface.HardwareAddr}
			for _, addr := range iface.Addrs {
				ni.Addrs = append(ni.Addrs, addr.Addr)
			}
			inv.Interfaces = append(inv.Interfaces, ni)
		}
	}

	return inv, nil
}

// WriteInventory collects an inventory and writes it as pretty-printed
// JSON to dir, returning the file path.
func WriteInventory(ctx context.Context, dir string) (string, error) {
	inv, err := CollectInventory(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("snapshot: mkdir: %w", err)
	}

	name := fmt.Sprintf("inventory-%s-%s.json", inv.Hostname, inv.Timestamp.Format("20060102-150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal inventory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("snapshot: write inventory: %w", err)
	}
	return path, nil
}
