package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"alquilercito/aggregator"
	"alquilercito/models"
)

func renderSnapshot(w io.Writer, snap *aggregator.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Run %s", snap.RunID))
	t.AppendHeader(table.Row{"Source", "File", "Status", "Listings", "Duration", "Error"})

	for _, f := range snap.Feeds {
		status := "ok"
		if !f.OK {
			status = "failed"
		}
		duration := (time.Duration(f.DurationMS) * time.Millisecond).String()
		t.AppendRow(table.Row{f.Source, f.Filename, status, f.Listings, duration, f.Error})
	}
	t.AppendFooter(table.Row{"", "", "total", len(snap.Listings), "", "expires " + snap.ExpiresAt.Format("2006-01-02 15:04")})
	t.Render()
}

func renderRuns(w io.Writer, runs []models.RefreshRun) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Status", "Forced", "Listings", "Failed Feeds", "Duration", "Started At"})

	for _, r := range runs {
		failed := 0
		for _, f := range r.Feeds {
			if !f.OK {
				failed++
			}
		}
		duration := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		t.AppendRow(table.Row{shortID(r.ID), r.Status, r.Forced, r.Listings, failed, duration, r.StartedAt.Format("2006-01-02 15:04:05")})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
