package archive

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/daveminay/cohoscrape/internal/download"
	"github.com/daveminay/cohoscrape/internal/registry"
)

const (
	// MaxRenderedFilings caps the filings written out, the total count is
	// still reported in full.
	MaxRenderedFilings = 15

	MethodLabel     = "Hybrid (Companies House API + Multi-Page Web Scraping)"
	TimestampLayout = "2006-01-02 15:04:05"

	officerSeparator = "=================================================="
	filingSeparator  = "----------------------------------------"
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func joinAddress(a *registry.Address) string {
	return strings.Join(a.Lines(), ", ")
}

func partialDate(d *registry.PartialDate) string {
	month, year := "", ""
	if d.Month > 0 {
		month = fmt.Sprint(d.Month)
	}
	if d.Year > 0 {
		year = fmt.Sprint(d.Year)
	}
	return month + "/" + year
}

// RenderProfile renders the overview section. A nil profile renders the
// "no data" placeholder.
func RenderProfile(p *registry.Profile) string {
	var b strings.Builder
	b.WriteString("=== COMPANY OVERVIEW ===\n\n")
	if p == nil {
		b.WriteString("No data available from API\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Company Name: %s\n", orNA(p.CompanyName))
	fmt.Fprintf(&b, "Company Number: %s\n", orNA(p.CompanyNumber))
	fmt.Fprintf(&b, "Company Status: %s\n", orNA(p.CompanyStatus))
	fmt.Fprintf(&b, "Company Type: %s\n", orNA(p.Type))
	fmt.Fprintf(&b, "Incorporated On: %s\n", orNA(p.DateOfCreation))
	fmt.Fprintf(&b, "Jurisdiction: %s\n", orNA(p.Jurisdiction))
	if p.RegisteredOfficeAddress != nil {
		fmt.Fprintf(&b, "Registered Office Address: %s\n", joinAddress(p.RegisteredOfficeAddress))
	}

	if len(p.SicCodes) > 0 {
		b.WriteString("\nNature of Business (SIC):\n")
		for _, sic := range p.SicCodes {
			fmt.Fprintf(&b, "  %s\n", sic)
		}
	}

	if a := p.Accounts; a != nil {
		lastMadeUpTo := ""
		if a.LastAccounts != nil {
			lastMadeUpTo = a.LastAccounts.MadeUpTo
		}
		b.WriteString("\n=== ACCOUNTS INFORMATION ===\n")
		fmt.Fprintf(&b, "Next Accounts Due: %s\n", orNA(a.NextDue))
		fmt.Fprintf(&b, "Next Made Up To: %s\n", orNA(a.NextMadeUpTo))
		fmt.Fprintf(&b, "Last Accounts Made Up To: %s\n", orNA(lastMadeUpTo))
	}

	if cs := p.ConfirmationStatement; cs != nil {
		b.WriteString("\n=== CONFIRMATION STATEMENT ===\n")
		fmt.Fprintf(&b, "Next Statement Date: %s\n", orNA(cs.NextDue))
		fmt.Fprintf(&b, "Next Made Up To: %s\n", orNA(cs.NextMadeUpTo))
		fmt.Fprintf(&b, "Last Made Up To: %s\n", orNA(cs.LastMadeUpTo))
	}

	return b.String()
}

func RenderOfficers(l *registry.OfficerList) string {
	var b strings.Builder
	b.WriteString("=== OFFICERS INFORMATION ===\n\n")
	if l == nil || len(l.Items) == 0 {
		b.WriteString("No officers data available\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Total Officers: %d\n\n", l.TotalResults)
	for i, o := range l.Items {
		fmt.Fprintf(&b, "Officer %d:\n", i+1)
		fmt.Fprintf(&b, "  Name: %s\n", orNA(o.Name))
		fmt.Fprintf(&b, "  Role: %s\n", orNA(o.OfficerRole))
		fmt.Fprintf(&b, "  Appointed On: %s\n", orNA(o.AppointedOn))
		if o.ResignedOn != "" {
			fmt.Fprintf(&b, "  Resigned On: %s\n", o.ResignedOn)
		}
		if o.Nationality != "" {
			fmt.Fprintf(&b, "  Nationality: %s\n", o.Nationality)
		}
		if o.CountryOfResidence != "" {
			fmt.Fprintf(&b, "  Country of Residence: %s\n", o.CountryOfResidence)
		}
		if o.Occupation != "" {
			fmt.Fprintf(&b, "  Occupation: %s\n", o.Occupation)
		}
		if o.DateOfBirth != nil {
			fmt.Fprintf(&b, "  Date of Birth: %s\n", partialDate(o.DateOfBirth))
		}
		if o.Address != nil {
			fmt.Fprintf(&b, "  Address: %s\n", joinAddress(o.Address))
		}
		b.WriteString("\n" + officerSeparator + "\n\n")
	}
	return b.String()
}

func RenderControllingPersons(l *registry.ControllingPersonList) string {
	var b strings.Builder
	b.WriteString("=== PERSONS WITH SIGNIFICANT CONTROL ===\n\n")
	if l == nil || len(l.Items) == 0 {
		b.WriteString("No PSC data available\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Total PSCs: %d\n\n", l.TotalResults)
	for i, p := range l.Items {
		fmt.Fprintf(&b, "PSC %d:\n", i+1)
		fmt.Fprintf(&b, "  Name: %s\n", orNA(p.Name))
		fmt.Fprintf(&b, "  Kind: %s\n", orNA(p.Kind))
		fmt.Fprintf(&b, "  Notified On: %s\n", orNA(p.NotifiedOn))
		if p.CeasedOn != "" {
			fmt.Fprintf(&b, "  Ceased On: %s\n", p.CeasedOn)
		}
		if p.Nationality != "" {
			fmt.Fprintf(&b, "  Nationality: %s\n", p.Nationality)
		}
		if p.CountryOfResidence != "" {
			fmt.Fprintf(&b, "  Country of Residence: %s\n", p.CountryOfResidence)
		}
		if p.DateOfBirth != nil {
			fmt.Fprintf(&b, "  Date of Birth: %s\n", partialDate(p.DateOfBirth))
		}
		if len(p.NaturesOfControl) > 0 {
			b.WriteString("  Nature of Control:\n")
			for _, n := range p.NaturesOfControl {
				fmt.Fprintf(&b, "    - %s\n", n)
			}
		}
		if p.Address != nil {
			fmt.Fprintf(&b, "  Address: %s\n", joinAddress(p.Address))
		}
		b.WriteString("\n" + officerSeparator + "\n\n")
	}
	return b.String()
}

func RenderFilingHistory(h *registry.FilingHistory) string {
	var b strings.Builder
	b.WriteString("=== FILING HISTORY ===\n\n")
	if h == nil || h.Items == nil {
		b.WriteString("No filing history available\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Total Filings: %d\n\n", h.TotalCount)
	for i, f := range h.Items {
		if i >= MaxRenderedFilings {
			break
		}
		fmt.Fprintf(&b, "Filing %d:\n", i+1)
		fmt.Fprintf(&b, "  Date: %s\n", orNA(f.Date))
		fmt.Fprintf(&b, "  Description: %s\n", orNA(f.Description))
		fmt.Fprintf(&b, "  Category: %s\n", orNA(f.Category))
		fmt.Fprintf(&b, "  Type: %s\n", orNA(f.Type))
		if f.ActionDate != "" {
			fmt.Fprintf(&b, "  Action Date: %s\n", f.ActionDate)
		}
		if f.Pages != nil {
			fmt.Fprintf(&b, "  Pages: %d\n", *f.Pages)
		}
		if f.DocumentAvailable() {
			b.WriteString("  Document Available: Yes\n")
		} else {
			b.WriteString("  Document Available: No\n")
		}
		b.WriteString("\n" + filingSeparator + "\n\n")
	}
	return b.String()
}

// RenderDownloadLog renders one line per attempted download, it is appended
// to the filing history section.
func RenderDownloadLog(docs []download.Document) string {
	var b strings.Builder
	b.WriteString("\n=== PDF DOCUMENTS ===\n\n")
	for _, d := range docs {
		if d.OK {
			fmt.Fprintf(&b, "Downloaded: %s (Page %d)\n", filepath.Base(d.Path), d.Link.Page)
			continue
		}
		fmt.Fprintf(&b, "Failed: %s (Page %d)\n", orNA(d.Link.Description), d.Link.Page)
	}
	return b.String()
}

type Summary struct {
	CompanyID   registry.CompanyID
	ExtractedAt time.Time
	TextFiles   int
	Downloaded  int
	// MaxPage is the highest listing page a document link was found on.
	MaxPage int
}

func RenderSummary(s Summary) string {
	var b strings.Builder
	b.WriteString("=== COMPANY DATA EXTRACTION SUMMARY ===\n\n")
	fmt.Fprintf(&b, "Company ID: %s\n", s.CompanyID)
	fmt.Fprintf(&b, "Extraction Date: %s\n", s.ExtractedAt.Format(TimestampLayout))
	fmt.Fprintf(&b, "Method: %s\n\n", MethodLabel)
	fmt.Fprintf(&b, "Files Created: %d text files\n", s.TextFiles)
	fmt.Fprintf(&b, "PDFs Downloaded: %d\n", s.Downloaded)
	fmt.Fprintf(&b, "Pages Scraped: %d\n", max(s.MaxPage, 1))
	return b.String()
}
