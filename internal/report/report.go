// Package report posts scheduled adherence reports to a webhook.
package report

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"painel-pcm-backend/internal/derive"
	"painel-pcm-backend/internal/kpi"
	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/parse"
)

// ContentType of the attachment.
const ContentType = "text/csv"

// Payload is the JSON body posted to the webhook.
type Payload struct {
	ReportType     string      `json:"report_type"`
	Date           string      `json:"date"`
	To             string      `json:"to"`
	Summary        kpi.Summary `json:"summary"`
	Attachment     string      `json:"attachment"`
	AttachmentName string      `json:"attachment_name"`
	ContentType    string      `json:"content_type"`
}

var weekdays = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

var months = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

// LongDate formats t as a Brazilian long date, e.g. "segunda-feira, 10 de março de 2025".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year())
}

var statusLabels = map[model.Status]string{
	model.StatusCompleted:  "Concluído",
	model.StatusPartial:    "Parcial",
	model.StatusInProgress: "Em andamento",
	model.StatusNotStarted: "Não iniciado",
	model.StatusCancelled:  "Cancelado",
}

var csvHeader = []string{
	"Data", "Gerência", "Trecho", "Sub", "Ativo", "Atividade", "Tipo",
	"Status", "Início Prog.", "Tempo Prog.", "Tempo Real", "Detalhamento",
}

// CSV renders records with their derived status and durations at time now.
func CSV(records []model.Record, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		view := derive.ViewOf(r, now)
		row := []string{
			r.Date, r.ManagementUnit, r.TrackSegment, r.SubArea, r.Asset, r.Activity, r.RecordType,
			statusLabels[view.Status], r.ScheduledStart, view.Scheduled.Text, view.Elapsed.Text, r.Detail,
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Build assembles the payload of one report.
func Build(reportType, recipient string, agg kpi.Aggregator, records []model.Record, now time.Time) (Payload, error) {
	body, err := CSV(records, now)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		ReportType:     reportType,
		Date:           LongDate(now),
		To:             recipient,
		Summary:        agg.Aggregate(records, now),
		Attachment:     base64.StdEncoding.EncodeToString(body),
		AttachmentName: fmt.Sprintf("painel-%s-%s.csv", slug(reportType), now.Format("20060102-1504")),
		ContentType:    ContentType,
	}, nil
}

func slug(s string) string {
	key := parse.NormalizeKey(s)
	if key == "" {
		return "relatorio"
	}
	return strings.ReplaceAll(key, "_", "-")
}
