// Package report renders the build status email.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
)

// Status colors.
const (
	ColorSucceeded = "#008000"
	ColorFailed    = "#d13212"
	ColorStopped   = "#808080"
)

// DateLayout formats commit dates in the report.
const DateLayout = "2006-01-02 15:04:05"

// Person is an author or committer row group.
type Person struct {
	Name  string
	Email string
	Date  time.Time
}

// Link is the log download link.
type Link struct {
	URL  string
	Name string
}

// Report is everything shown in the email.
type Report struct {
	Project      string
	Pipeline     string
	State        ingress.OutcomeState
	Account      string
	Region       string
	CommitID     string
	Repository   string
	Branch       string
	Author       Person
	Committer    Person
	Version      string
	ArtifactPath string
	Log          *Link
	LinkExpiry   time.Duration
}

// SubProject is the pipeline name's first three characters.
func (r Report) SubProject() string {
	runes := []rune(r.Pipeline)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes)
}

// Subject is the email subject line.
func (r Report) Subject() string {
	return fmt.Sprintf("Pipeline Build Status Notification %s %s %s %s", r.Project, r.SubProject(), r.Branch, r.State)
}

// Color is the status cell color.
func (r Report) Color() string {
	switch r.State {
	case ingress.OutcomeSucceeded:
		return ColorSucceeded
	case ingress.OutcomeFailed:
		return ColorFailed
	default:
		return ColorStopped
	}
}

// Heading is the title above the table.
func (r Report) Heading() string {
	if r.State.IsSuccess() {
		return r.Project + " Pipeline Build Status report was triggered"
	}
	return r.Project + " Pipeline Logs was triggered"
}

// Row is one label/value line of the table.
type Row struct {
	Label string
	Value string
}

// Rows lists the table in display order. Version fields only appear for
// successful builds.
func (r Report) Rows() []Row {
	rows := []Row{
		{"Account", r.Account + " " + r.Region},
		{"Commit Id", r.CommitID},
		{"Repository Name", r.Repository},
		{"Branch Name", r.Branch},
		{"Author Name", r.Author.Name},
		{"Author Email", r.Author.Email},
		{"Author Commited Date", formatDate(r.Author.Date)},
		{"Committer Name", r.Committer.Name},
		{"Committer Email", r.Committer.Email},
		{"Commited Date", formatDate(r.Committer.Date)},
	}
	if r.State.IsSuccess() {
		rows = append(rows, Row{"SOC Version", r.Version}, Row{"SOC Jfrog Path", r.ArtifactPath})
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

const noticeMarkdown = `S3 path logs link will get expired in %s.Please download before it expires.

*Kindly note that this is a system-generated unattended mailbox; hence, please do not reply back to this mail.*
`

// Notice is the footer rendered from markdown.
func (r Report) Notice() (template.HTML, error) {
	var buf bytes.Buffer
	md := fmt.Sprintf(noticeMarkdown, expiryText(r.LinkExpiry))
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	// goldmark omits raw HTML unless configured otherwise.
	return template.HTML(buf.String()), nil
}

func expiryText(d time.Duration) string {
	if d <= 0 {
		d = 120 * time.Hour
	}
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}

var (
	tmplOnce sync.Once
	tmpl     *template.Template
)

func bodyTemplate() *template.Template {
	tmplOnce.Do(func() {
		tmpl = template.Must(template.New("report").Parse(bodySource))
	})
	return tmpl
}

type view struct {
	Report
	Notice template.HTML
}

// Render produces the HTML body.
func Render(r Report) (string, error) {
	notice, err := r.Notice()
	if err != nil {
		return "", fmt.Errorf("render notice: %w", err)
	}
	var buf bytes.Buffer
	if err := bodyTemplate().Execute(&buf, view{Report: r, Notice: notice}); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
