package main

import "github.com/charmbracelet/lipgloss"

var (
	taskStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	descStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	nestedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
)
