package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func printStartupBanner(cfg appConfig) {
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
	lines = append(lines, "    "+dim.Render("v"+version))
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Pipeline"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Input          %s", check, cyan.Render(shortenPath(cfg.Input))))
	lines = append(lines, fmt.Sprintf("    %s  Format         %s", check, dim.Render(cfg.InputFormat)))
	lines = append(lines, fmt.Sprintf("    %s  Alerts         %s", check, cyan.Render(shortenPath(cfg.AlertsOut))))
	if cfg.EventsOut != "" {
		lines = append(lines, fmt.Sprintf("    %s  Events Mirror  %s", check, dim.Render(shortenPath(cfg.EventsOut))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Events Mirror  %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Detection"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Rule           %s", check,
		dim.Render(fmt.Sprintf("%d+ failures/key within %s", cfg.FailThreshold, cfg.Window))))
	if cfg.AlertSudo {
		lines = append(lines, fmt.Sprintf("    %s  Sudo Alerts    %s", check, dim.Render("enabled")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Sudo Alerts    %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Surfaces"))
	lines = append(lines, "")
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	if cfg.NATSURL != "" {
		lines = append(lines, fmt.Sprintf("    %s  NATS           %s", check, cyan.Render(cfg.NATSURL)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  NATS           %s", dot, dim.Render("disabled")))
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
