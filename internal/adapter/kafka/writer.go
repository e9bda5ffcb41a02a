package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/coral-dhw-etl/internal/config"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

// Writer publishes region reports to a Kafka topic, one message per region.
// It implements pipeline.ReportLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a Kafka producer for the configured summary topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSummaryTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, now: time.Now}
}

// LoadReports serializes and publishes the reports in a single WriteMessages
// call. Messages are keyed by source and region so reruns land on the same
// partition.
func (w *Writer) LoadReports(ctx context.Context, reports []domain.RegionReport) error {
	if len(reports) == 0 {
		return nil
	}
	publishedAt := w.now().UTC()
	msgs := make([]kafkago.Message, len(reports))
	for i := range reports {
		msg, err := serializeToMessage(reports[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d region reports: %w", len(msgs), err)
	}
	w.logger.Debug("region reports published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// ReportMessage is the JSON body of a published region report. Missing
// statistics are null.
type ReportMessage struct {
	RunID     string       `json:"run_id"`
	Source    string       `json:"source"`
	Region    string       `json:"region"`
	Variable  string       `json:"variable"`
	Statistic string       `json:"statistic"`
	Rows      []RowMessage `json:"rows"`
	Trend     *TrendBody   `json:"trend,omitempty"`
}

// RowMessage is one year of a region summary.
type RowMessage struct {
	Year      int                 `json:"year"`
	Count     int                 `json:"count"`
	Min       *float64            `json:"min"`
	Mean      *float64            `json:"mean"`
	Median    *float64            `json:"median"`
	Std       *float64            `json:"std"`
	Max       *float64            `json:"max"`
	Quantiles map[string]*float64 `json:"quantiles"`
}

// TrendBody is the linear trend of the report's statistic, with the observed
// and fitted values per year.
type TrendBody struct {
	Slope     float64    `json:"slope"`
	Intercept float64    `json:"intercept"`
	FirstYear int        `json:"first_year"`
	LastYear  int        `json:"last_year"`
	Years     []int      `json:"years"`
	Observed  []*float64 `json:"observed"`
	Predicted []*float64 `json:"predicted"`
}

func newReportMessage(r domain.RegionReport) ReportMessage {
	m := ReportMessage{
		RunID:     r.RunID,
		Source:    r.Source,
		Region:    r.Region,
		Variable:  r.Summary.Variable,
		Statistic: r.Statistic,
		Rows:      make([]RowMessage, len(r.Summary.Rows)),
	}
	for i, row := range r.Summary.Rows {
		qs := make(map[string]*float64, len(r.Summary.Levels))
		for k, p := range r.Summary.Levels {
			if k < len(row.Quantiles) {
				qs[domain.QuantileName(p)] = ptr(row.Quantiles[k])
			}
		}
		m.Rows[i] = RowMessage{
			Year:      row.Year,
			Count:     row.Count,
			Min:       ptr(row.Min),
			Mean:      ptr(row.Mean),
			Median:    ptr(row.Median),
			Std:       ptr(row.Std),
			Max:       ptr(row.Max),
			Quantiles: qs,
		}
	}
	if t := r.Trend; t != nil && len(t.Years) > 0 {
		m.Trend = &TrendBody{
			Slope:     t.Slope,
			Intercept: t.Intercept,
			FirstYear: t.Years[0],
			LastYear:  t.Years[len(t.Years)-1],
			Years:     t.Years,
			Observed:  ptrs(t.Observed),
			Predicted: ptrs(t.Predicted),
		}
	}
	return m
}

func ptrs(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = ptr(v)
	}
	return out
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// serializeToMessage marshals a RegionReport into a Kafka message.
func serializeToMessage(r domain.RegionReport, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(newReportMessage(r))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Source + "/" + r.Region),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "variable", Value: []byte(r.Summary.Variable)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
