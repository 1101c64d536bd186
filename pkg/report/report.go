package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/probe"
)

// RenderError means a document could not be written. Facts and score computed before
// rendering remain valid.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// AuditDocument is everything that goes into an audit report.
type AuditDocument struct {
	ScanID    string
	Identity  engine.Identity
	Facts     engine.FactBundle
	Score     engine.ScoreResult
	Findings  []engine.Finding
	Narrative string
	SEOFixes  string
}

// StrategyDocument is the proposal for a business without a website.
type StrategyDocument struct {
	ScanID   string
	Identity engine.Identity
	Strategy string
}

// Renderer writes PDF documents into a directory.
type Renderer struct {
	OutputDir      string
	SensitivePorts []int
	now            func() time.Time
}

func NewRenderer(outputDir string, sensitivePorts []int) *Renderer {
	if outputDir == "" {
		outputDir = "."
	}
	if len(sensitivePorts) == 0 {
		sensitivePorts = engine.DefaultPolicy().SensitivePorts
	}
	return &Renderer{OutputDir: outputDir, SensitivePorts: sensitivePorts, now: time.Now}
}

// RenderAudit writes <Name>_Audit_<scan>.pdf and returns its path.
func (r *Renderer) RenderAudit(doc AuditDocument) (string, error) {
	path := filepath.Join(r.OutputDir, ScanFileName(doc.Identity.DisplayName, "Audit", doc.ScanID))
	w := r.newWriter("Digital Growth Audit", doc.ScanID)
	b := doc.Facts

	w.title("Audit Report: " + doc.Identity.DisplayName)
	w.line("Target URL: " + engine.Display(doc.Identity.URL))
	if doc.Identity.Location != "" {
		w.line("Location: " + doc.Identity.Location)
	}
	if doc.Identity.Industry != "" {
		w.line("Industry: " + doc.Identity.Industry)
	}
	w.line("Generated: " + r.now().Format("2006-01-02 15:04 MST"))
	w.pdf.Ln(5)

	w.pdf.SetFillColor(200, 220, 255)
	w.pdf.SetFont("Arial", "B", 14)
	w.pdf.CellFormat(0, 10, w.tr(fmt.Sprintf("Overall Digital Health Score: %d/100 (%s)", doc.Score.Score, doc.Score.Tier)), "", 1, "L", true, 0, "")
	w.pdf.Ln(5)

	w.heading("Technical Analysis:")
	w.bullet("SSL Security", known(b, engine.CategoryTLS, func() string {
		if b.TLSValid {
			return "Secure (HTTPS)"
		}
		return "Not Secure"
	}))
	w.bullet("Security Headers", known(b, engine.CategoryHeaders, func() string {
		parts := make([]string, 0, len(probe.SecurityHeaderSet))
		for _, h := range probe.SecurityHeaderSet {
			parts = append(parts, h+": "+engine.DisplayPresence(b.SecurityHeaders, h))
		}
		return strings.Join(parts, ", ")
	}))
	w.bullet("Email Authentication", known(b, engine.CategoryEmailAuth, func() string {
		return fmt.Sprintf("SPF: %s, DMARC: %s",
			engine.DisplayPresence(b.EmailAuth, probe.RecordSPF),
			engine.DisplayPresence(b.EmailAuth, probe.RecordDMARC))
	}))
	w.bullet("Open Ports", known(b, engine.CategoryPorts, func() string {
		return r.openPorts(b)
	}))
	w.bullet("SEO Title Tag", known(b, engine.CategorySEO, func() string { return engine.Display(b.SEO.Title) }))
	w.bullet("Meta Description", known(b, engine.CategorySEO, func() string { return engine.Display(b.SEO.Description) }))
	w.bullet("Main Heading (H1)", known(b, engine.CategorySEO, func() string { return engine.Display(b.SEO.H1) }))
	w.bullet("Mobile Viewport", known(b, engine.CategorySEO, func() string { return presentMissing(b.SEO.HasViewport) }))
	if b.Known(engine.CategoryRobots) {
		w.bullet("robots.txt", presentMissing(b.Robots.Present))
	}
	w.bullet("Technology Stack", known(b, engine.CategoryTech, func() string { return listOr(b.TechStack, "None Detected") }))
	w.bullet("Contact Emails", known(b, engine.CategoryEmails, func() string { return listOr(b.ContactEmails, "None Found") }))
	w.bullet("Social Profiles", known(b, engine.CategorySocials, func() string { return socials(b.SocialLinks) }))
	w.pdf.Ln(5)

	if len(b.Competitors) > 0 {
		w.heading("Local Competitors:")
		for i, c := range b.Competitors {
			entry := fmt.Sprintf("%d. %s", i+1, c.Name)
			if c.URL != "" {
				entry += " - " + c.URL
			}
			if c.Address != "" {
				entry += " (" + c.Address + ")"
			}
			w.para(entry)
		}
		w.pdf.Ln(5)
	}

	if len(doc.Findings) > 0 {
		w.heading("Findings & Remediation:")
		for _, f := range doc.Findings {
			w.pdf.SetFont("Arial", "B", 11)
			w.pdf.MultiCell(0, 7, w.tr(fmt.Sprintf("[%d/10] %s", f.Severity, f.Evidence)), "", "L", false)
			if f.RemediationHint != "" {
				w.pdf.SetFont("Arial", "", 10)
				w.pdf.MultiCell(0, 6, w.tr("Fix: "+f.RemediationHint), "", "L", false)
			}
			w.pdf.Ln(2)
		}
		w.pdf.Ln(3)
	}

	w.heading("Executive Summary & Strategy:")
	w.para(doc.Narrative)
	w.pdf.Ln(5)

	if strings.TrimSpace(doc.SEOFixes) != "" {
		w.heading("Suggested SEO Improvements:")
		w.para(doc.SEOFixes)
		w.pdf.Ln(5)
	}

	w.callToAction("RECOMMENDATION: Immediate Website Optimization Required.")
	return path, w.save(path)
}

// RenderStrategy writes <Name>_Strategy_<scan>.pdf and returns its path.
func (r *Renderer) RenderStrategy(doc StrategyDocument) (string, error) {
	path := filepath.Join(r.OutputDir, ScanFileName(doc.Identity.DisplayName, "Strategy", doc.ScanID))
	w := r.newWriter("Website Strategy Proposal", doc.ScanID)

	w.title("Prepared for: " + doc.Identity.DisplayName)
	if doc.Identity.Location != "" {
		w.line("Location: " + doc.Identity.Location)
	}
	w.line("Generated: " + r.now().Format("2006-01-02 15:04 MST"))
	w.pdf.Ln(5)

	w.heading("Digital Presence:")
	w.para("No website was found for this business. Customers searching online are being sent to competitors.")
	w.pdf.Ln(5)

	w.heading("Proposal:")
	w.para(doc.Strategy)
	w.pdf.Ln(5)

	w.callToAction("NEXT STEP: Book a free 30-minute website planning call.")
	return path, w.save(path)
}

func (r *Renderer) openPorts(b engine.FactBundle) string {
	sensitive := make(map[int]bool, len(r.SensitivePorts))
	for _, p := range r.SensitivePorts {
		sensitive[p] = true
	}
	var ports []int
	for port, state := range b.OpenPorts {
		if state == probe.Open {
			ports = append(ports, port)
		}
	}
	if len(ports) == 0 {
		return "None"
	}
	sort.Ints(ports)
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprint(p)
		if sensitive[p] {
			parts[i] += " (RISK)"
		}
	}
	return strings.Join(parts, ", ")
}

// writer wraps an fpdf document with sanitizing text helpers.
type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *Renderer) newWriter(header, scanID string) *writer {
	pdf := fpdf.New("P", "mm", "A4", "")
	toCP1252 := pdf.UnicodeTranslatorFromDescriptor("")
	w := &writer{pdf: pdf, tr: func(s string) string { return toCP1252(Sanitize(s)) }}

	pdf.SetTitle(header, true)
	pdf.SetCreator("leadscope", true)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 15)
		pdf.CellFormat(0, 10, header, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		footer := fmt.Sprintf("Page %d", pdf.PageNo())
		if scanID != "" {
			footer += "  |  Scan " + scanID
		}
		pdf.CellFormat(0, 10, footer, "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return w
}

func (w *writer) title(text string) {
	w.pdf.SetFont("Arial", "B", 16)
	w.pdf.CellFormat(0, 10, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *writer) line(text string) {
	w.pdf.SetFont("Arial", "", 12)
	w.pdf.CellFormat(0, 8, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *writer) heading(text string) {
	w.pdf.SetFont("Arial", "B", 12)
	w.pdf.CellFormat(0, 10, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *writer) bullet(label, value string) {
	w.pdf.SetFont("Arial", "", 11)
	w.pdf.MultiCell(0, 7, w.tr("- "+label+": "+value), "", "L", false)
}

func (w *writer) para(text string) {
	w.pdf.SetFont("Arial", "", 11)
	w.pdf.MultiCell(0, 7, w.tr(text), "", "L", false)
}

func (w *writer) callToAction(text string) {
	w.pdf.SetFont("Arial", "B", 12)
	w.pdf.SetTextColor(0, 100, 0)
	w.pdf.CellFormat(0, 10, w.tr(text), "", 1, "L", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
}

func (w *writer) save(path string) error {
	if err := w.pdf.Error(); err != nil {
		return &RenderError{Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &RenderError{Path: path, Err: err}
	}
	if err := w.pdf.OutputFileAndClose(path); err != nil {
		return &RenderError{Path: path, Err: err}
	}
	return nil
}

func known(b engine.FactBundle, c engine.Category, value func() string) string {
	if !b.Known(c) {
		return "Unknown (check did not complete)"
	}
	return value()
}

func presentMissing(ok bool) string {
	if ok {
		return "Present"
	}
	return "Missing"
}

func listOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func socials(links map[string]string) string {
	if len(links) == 0 {
		return "None Found"
	}
	platforms := make([]string, 0, len(links))
	for p := range links {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	parts := make([]string, len(platforms))
	for i, p := range platforms {
		parts[i] = p + " (" + links[p] + ")"
	}
	return strings.Join(parts, ", ")
}
