// Package export implements a transcript-export feature: rendering
// one finished AskResponse (question, answer, citations) as a PDF transcript
// for audit/record-keeping. Adapted from internal/app/pdf.go's
// writeSimplePDF (line-oriented Markdown-to-PDF with clickable links),
// repurposed to stream a single Q&A transcript to an io.Writer instead of a
// file, and to number citations instead of parsing Markdown link syntax.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nolia/ask-service/internal/askapi"
)

// WriteTranscriptPDF renders question and resp as a single-page-flow PDF
// transcript and writes it to w.
func WriteTranscriptPDF(w io.Writer, question string, resp askapi.Response, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Ask Transcript", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, generatedAt.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Question", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	writeWrapped(pdf, question)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Answer (model: %s)", resp.Model), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	writeWrapped(pdf, resp.Answer)
	pdf.Ln(4)

	if len(resp.Citations) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Sources", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for i, c := range resp.Citations {
			label := c.URL
			if c.Title != "" {
				label = c.Title
			}
			pdf.Write(5, fmt.Sprintf("[%d] ", i+1))
			pdf.WriteLinkString(5, label, c.URL)
			pdf.Ln(6)
		}
		pdf.Ln(4)
	}

	if len(resp.FollowUps) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Follow-up questions", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, f := range resp.FollowUps {
			pdf.MultiCell(0, 5, "- "+f, "", "L", false)
		}
	}

	return pdf.Output(w)
}

func writeWrapped(pdf *gofpdf.Fpdf, text string) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
}
