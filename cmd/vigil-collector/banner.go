package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func printStartupBanner(cfg appConfig, sourceCount int) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦  ╦╦╔═╗╦╦
    ╚╗╔╝║║ ╦║║
     ╚╝ ╩╚═╝╩╩═╝`)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+dim.Render("collector v"+version))
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Collection"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Sources        %s", check,
		cyan.Render(fmt.Sprintf("%d from %s", sourceCount, shortenPath(cfg.SourcesPath)))))
	lines = append(lines, fmt.Sprintf("    %s  Output         %s", check, cyan.Render(shortenPath(cfg.OutDir))))
	if cfg.Once {
		lines = append(lines, fmt.Sprintf("    %s  Mode           %s", check, yellow.Render("single cycle")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Interval       %s", check, dim.Render(cfg.Interval.String())))
	}
	lines = append(lines, fmt.Sprintf("    %s  SSH Key        %s", check, dim.Render(shortenPath(cfg.SSHKey))))
	if cfg.KnownHosts != "" {
		lines = append(lines, fmt.Sprintf("    %s  Known Hosts    %s", check, dim.Render(shortenPath(cfg.KnownHosts))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Known Hosts    %s", dot, yellow.Render("verification off")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Extras"))
	lines = append(lines, "")
	if cfg.Snapshot {
		lines = append(lines, fmt.Sprintf("    %s  Inventory      %s", check, dim.Render("at startup")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Inventory      %s", dot, dim.Render("disabled")))
	}
	if cfg.NetTelemetry {
		lines = append(lines, fmt.Sprintf("    %s  Net Telemetry  %s", check, dim.Render("per cycle")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Net Telemetry  %s", dot, dim.Render("disabled")))
	}
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
