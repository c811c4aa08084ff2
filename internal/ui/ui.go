// Package ui holds the terminal styles shared by the ckboard commands.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Title styles a command's heading line.
	Title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

	// Label styles the left column of key/value output.
	Label = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)

	// Value styles the right column of key/value output.
	Value = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	// OK styles healthy status values.
	OK = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// Warn styles degraded status values.
	Warn = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	// Err styles failures.
	Err = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// KV renders one aligned key/value line.
func KV(key string, value any) string {
	return fmt.Sprintf("%s %s", Label.Render(key), Value.Render(fmt.Sprint(value)))
}

// RenderAccent highlights a marker or short phrase.
func RenderAccent(s string) string { return Title.Render(s) }

// RenderPass renders a success marker.
func RenderPass(s string) string { return OK.Render(s) }

// RenderWarn renders a warning marker.
func RenderWarn(s string) string { return Warn.Render(s) }

// RenderErr renders a failure marker.
func RenderErr(s string) string { return Err.Render(s) }
