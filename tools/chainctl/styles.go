package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	health "homewatch/internal/health/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	statusRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func renderUserStatus(status health.UserStatus) string {
	switch status {
	case health.UserRed:
		return statusRed.Render(string(status))
	case health.UserYellow:
		return statusYellow.Render(string(status))
	default:
		return statusGreen.Render(string(status))
	}
}

// writeTable aligns plain cells first and styles the finished header line, so
// escape sequences never reach the tabwriter's width accounting.
func writeTable(out io.Writer, header lipgloss.Style, columns []string, rows [][]string) error {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	head, body, _ := strings.Cut(buf.String(), "\n")
	if _, err := fmt.Fprintln(out, header.Render(head)); err != nil {
		return err
	}
	_, err := io.WriteString(out, body)
	return err
}
