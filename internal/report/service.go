package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"symptom-checker/internal/consultation"
)

var ErrNotConfigured = errors.New("report delivery is not configured")

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// Common DejaVu locations on Debian, Alpine and Arch.
var defaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
}

const (
	fontName   = "DejaVu"
	textWidth  = 500.0
	pageBottom = 780.0
)

type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
}

// NewService builds a report service. tg may be nil, in which case reports can
// only be downloaded. fontPath, when set, is tried before the system defaults.
func NewService(tg TelegramClient, doctorChatID int64, fontPath string) *Service {
	paths := defaultFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, defaultFontPaths...)
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    paths,
	}
}

func (s *Service) configured() bool {
	return s.tgClient != nil && s.doctorChatID != 0
}

// Build renders the consultation as an A4 PDF.
func (s *Service) Build(c consultation.Consultation) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(pdf); err != nil {
		return nil, err
	}

	w := &writer{pdf: pdf}
	w.line(20, "Symptom consultation report")
	w.br(30)

	w.line(12, fmt.Sprintf("Date: %s", time.Now().Format("02.01.2006 15:04")))
	w.line(12, fmt.Sprintf("Consultation ID: %s", c.ID))
	w.br(10)

	w.line(14, "Collected symptoms:")
	if len(c.Symptoms) == 0 {
		w.line(11, "- none")
	}
	for _, symptom := range c.Symptoms {
		w.line(11, "- "+symptom)
	}
	w.br(10)

	if p := c.LastPrediction; p != nil {
		w.line(14, "Prediction:")
		confidence := fmt.Sprintf("%.0f%%", p.Confidence)
		if p.ConfidenceSynthetic {
			confidence += " (estimate, not reported by the model)"
		}
		w.paragraph(11, fmt.Sprintf("%s, confidence %s, based on %d symptoms (%s).",
			p.Disease, confidence, p.SymptomCount, p.Label))
		w.br(10)
	}

	w.line(14, "Transcript:")
	for _, m := range c.Messages {
		w.paragraph(10, fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Format("15:04:05"), m.Role, m.Text))
	}
	w.br(10)
	w.paragraph(9, "Generated automatically. This is not a medical diagnosis.")

	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var fontErr error
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontName, path); err == nil {
			return nil
		} else {
			fontErr = err
		}
	}
	return fmt.Errorf("failed to load font for PDF, set REPORT_FONT_PATH or install DejaVu fonts: %w", fontErr)
}

// Send builds the report and delivers it to the clinician chat.
func (s *Service) Send(ctx context.Context, c consultation.Consultation) error {
	if !s.configured() {
		return ErrNotConfigured
	}
	data, err := s.Build(c)
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("report_%s.pdf", c.ID.String())
	log.Printf("Sending PDF report for consultation %s to chat %d", c.ID, s.doctorChatID)
	return s.tgClient.SendDocument(ctx, s.doctorChatID, data, fileName)
}

// NotifyPrediction posts a one-line prediction summary. It does nothing when
// delivery is not configured.
func (s *Service) NotifyPrediction(ctx context.Context, c consultation.Consultation, p consultation.Prediction) error {
	if !s.configured() {
		return nil
	}
	text := fmt.Sprintf("Consultation %s: %s prediction %q (%.0f%%%s) from symptoms: %s",
		c.ID, p.Label, p.Disease, p.Confidence, syntheticNote(p), strings.Join(c.Symptoms, ", "))
	return s.tgClient.SendMessage(ctx, s.doctorChatID, text)
}

func syntheticNote(p consultation.Prediction) string {
	if p.ConfidenceSynthetic {
		return ", estimated"
	}
	return ""
}

// writer wraps gopdf with line wrapping and page breaks and keeps the first error.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) br(h float64) {
	w.pdf.Br(h)
}

func (w *writer) line(size float64, text string) {
	if w.err != nil {
		return
	}
	if err := w.pdf.SetFont(fontName, "", size); err != nil {
		w.err = err
		return
	}
	if w.pdf.GetY() > pageBottom {
		w.pdf.AddPage()
	}
	if err := w.pdf.Cell(nil, text); err != nil {
		w.err = err
		return
	}
	w.pdf.Br(size + 4)
}

func (w *writer) paragraph(size float64, text string) {
	if w.err != nil {
		return
	}
	if err := w.pdf.SetFont(fontName, "", size); err != nil {
		w.err = err
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		// SplitText fails on empty input
		lines = []string{text}
	}
	for _, l := range lines {
		w.line(size, l)
	}
}
