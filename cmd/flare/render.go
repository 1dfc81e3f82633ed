package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/evanschultz/flare/internal/app"
	"github.com/evanschultz/flare/internal/domain"
)

// descriptionWrap is the glamour word-wrap width for event descriptions.
const descriptionWrap = 80

var (
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// statusStyle colors one event status.
func statusStyle(status domain.EventStatus) lipgloss.Style {
	switch status {
	case domain.EventStatusApproved:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	case domain.EventStatusRejected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	}
}

// renderEventTable writes one row per event with organizer and confirmed seats.
func renderEventTable(w io.Writer, rosters []app.EventRoster) error {
	if len(rosters) == 0 {
		_, err := fmt.Fprintln(w, "no events")
		return err
	}
	statuses := make([]domain.EventStatus, 0, len(rosters))
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "Name", "Date", "Time", "Venue", "Organizer", "Seats", "Status").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 7 && row >= 0 && row < len(statuses) {
				return statusStyle(statuses[row])
			}
			return lipgloss.NewStyle()
		})
	for _, roster := range rosters {
		event := roster.Event
		statuses = append(statuses, event.Status)
		t.Row(
			event.ID,
			event.Name,
			event.Date.Format(domain.DateLayout),
			event.Time.String(),
			event.Venue,
			organizerLabel(roster),
			fmt.Sprintf("%d/%d", len(roster.Participants), event.Capacity),
			string(event.Status),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// organizerLabel prefers the organizer's display name over the raw id.
func organizerLabel(roster app.EventRoster) string {
	if name := strings.TrimSpace(roster.Organizer.DisplayName); name != "" {
		return name
	}
	return roster.Event.OrganizerID
}

// renderEventDetail writes event fields, the markdown description, and recent activity.
func renderEventDetail(w io.Writer, event domain.Event, activity []domain.ChangeEvent) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(event.Name))
	b.WriteString("\n")
	for _, field := range [][2]string{
		{"id", event.ID},
		{"status", statusStyle(event.Status).Render(string(event.Status))},
		{"when", event.Date.Format(domain.DateLayout) + " " + event.Time.String()},
		{"venue", event.Venue},
		{"capacity", strconv.Itoa(event.Capacity)},
		{"organizer", event.OrganizerID},
	} {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", field[0])), field[1])
	}
	if description := renderMarkdown(event.Description, descriptionWrap); description != "" {
		b.WriteString("\n")
		b.WriteString(description)
		b.WriteString("\n")
	}

	if len(activity) > 0 {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(borderStyle).
			Headers("When", "Operation", "Actor", "Subject").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return lipgloss.NewStyle()
			})
		for _, entry := range activity {
			t.Row(
				entry.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
				string(entry.Operation),
				entry.ActorID,
				entry.SubjectID,
			)
		}
		b.WriteString("\n")
		b.WriteString(t.Render())
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// renderMarkdown renders markdown for the terminal and falls back to the raw text.
func renderMarkdown(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	if width < 24 {
		width = 24
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}
