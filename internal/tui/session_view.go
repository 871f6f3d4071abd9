package tui

import (
	"strings"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

func (p *SessionPage) header() string {
	if p.kind == model.KindLoadBySaved {
		return "Saved locations"
	}
	return "Nearby locations"
}

func (p *SessionPage) View(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.header()))
	b.WriteString("\n\n")

	switch p.screen {
	case screenLoading:
		switch {
		case p.errText != "":
			b.WriteString(errorStyle.Render(p.errText))
			b.WriteString("\n\n")
			b.WriteString(helpLine(p.keys.Refresh, p.keys.Back))
		default:
			b.WriteString(p.spinner.View() + " " + normalStyle.Render(p.status))
			b.WriteString("\n\n")
			b.WriteString(helpLine(p.keys.Back))
		}

	case screenResults:
		for i := 0; i < p.count; i++ {
			rec := p.records[i]
			line := dotStyle(rec.Dot).Render("●") + " " + rec.Street
			if i == p.selected {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString(normalStyle.Render(line))
			}
			b.WriteString("\n  " + dimStyle.Render(rec.City) + "\n")
		}
		b.WriteString("\n")
		b.WriteString(helpLine(p.keys.Select, p.keys.Refresh, p.keys.Back))

	case screenDetails:
		rec := p.records[p.selected]
		b.WriteString(normalStyle.Bold(true).Render(rec.Street) + "\n")
		b.WriteString(normalStyle.Render(rec.City) + "\n")
		b.WriteString(dimStyle.Render(rec.LastChecked) + "\n\n")
		b.WriteString(dotStyle(rec.Dot).Render(machineStatus(rec.Dot)))
		b.WriteString("\n\n")
		b.WriteString(helpLine(p.keys.Refresh, p.keys.Back))
	}

	return framed(width, height, b.String())
}
