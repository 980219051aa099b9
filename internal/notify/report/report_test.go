package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
)

func sample(state ingress.OutcomeState) Report {
	return Report{
		Project:      "DTDJ",
		Pipeline:     "r2ex-digital-twin",
		State:        state,
		Account:      "123456789012",
		Region:       "ap-south-1",
		CommitID:     "abc123",
		Repository:   "manifest-demo",
		Branch:       "release/DigitalTwin_DT12",
		Author:       Person{Name: "Asha", Email: "asha@example.com", Date: time.Unix(1700000000, 0)},
		Committer:    Person{Name: "Ravi <ops>", Email: "ravi@example.com", Date: time.Unix(1700003600, 0)},
		Version:      "1.2.3",
		ArtifactPath: "jfrog/soc/1.2.3",
		Log:          &Link{URL: "https://signed.example.com/log?x=1&y=2", Name: "build.log"},
		LinkExpiry:   120 * time.Hour,
	}
}

// table walks the rendered document and returns label -> value cell text.
func table(t *testing.T, body string) (map[string]string, []string) {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)

	cells := map[string]string{}
	var order []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var tds []*html.Node
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "td" {
					tds = append(tds, c)
				}
			}
			if len(tds) == 2 {
				label := text(tds[0])
				cells[label] = text(tds[1])
				order = append(order, label)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return cells, order
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func findAttr(n *html.Node, tag, key string) string {
	if n.Type == html.ElementNode && n.Data == tag {
		for _, a := range n.Attr {
			if a.Key == key {
				return a.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := findAttr(c, tag, key); v != "" {
			return v
		}
	}
	return ""
}

func TestRenderSuccess(t *testing.T) {
	r := sample(ingress.OutcomeSucceeded)
	body, err := Render(r)
	require.NoError(t, err)

	cells, order := table(t, body)
	assert.Equal(t, []string{
		"Build Status", "Account", "Commit Id", "Repository Name", "Branch Name",
		"Author Name", "Author Email", "Author Commited Date",
		"Committer Name", "Committer Email", "Commited Date",
		"SOC Version", "SOC Jfrog Path", "SOC S3 Path",
	}, order)
	assert.Equal(t, "Succeeded", cells["Build Status"])
	assert.Equal(t, "123456789012 ap-south-1", cells["Account"])
	assert.Equal(t, "Ravi <ops>", cells["Committer Name"], "values are escaped, not interpreted")
	assert.Equal(t, "2023-11-14 22:13:20", cells["Author Commited Date"])
	assert.Equal(t, "1.2.3", cells["SOC Version"])
	assert.Equal(t, "build.log", cells["SOC S3 Path"])

	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/log?x=1&y=2", findAttr(doc, "a", "href"))
	assert.Contains(t, findAttr(doc, "span", "style"), ColorSucceeded)

	assert.Contains(t, body, "DTDJ Pipeline Build Status report was triggered")
	assert.Contains(t, body, "S3 path logs link will get expired in 5 days.Please download before it expires.")
	assert.Contains(t, body, "<em>Kindly note that this is a system-generated unattended mailbox")
}

func TestRenderFailureAndStopped(t *testing.T) {
	for state, color := range map[ingress.OutcomeState]string{
		ingress.OutcomeFailed:  ColorFailed,
		ingress.OutcomeStopped: ColorStopped,
	} {
		r := sample(state)
		r.Log = nil
		body, err := Render(r)
		require.NoError(t, err)

		cells, _ := table(t, body)
		assert.NotContains(t, cells, "SOC Version")
		assert.NotContains(t, cells, "SOC Jfrog Path")
		assert.Equal(t, "not available", cells["SOC S3 Path"])
		assert.Contains(t, body, "DTDJ Pipeline Logs was triggered")

		doc, err := html.Parse(strings.NewReader(body))
		require.NoError(t, err)
		assert.Contains(t, findAttr(doc, "span", "style"), color)
	}
}

func TestSubject(t *testing.T) {
	r := sample(ingress.OutcomeFailed)
	assert.Equal(t, "Pipeline Build Status Notification DTDJ r2e release/DigitalTwin_DT12 Failed", r.Subject())

	r.Pipeline = "ab"
	assert.Equal(t, "ab", r.SubProject())
}

func TestExpiryText(t *testing.T) {
	assert.Equal(t, "5 days", expiryText(120*time.Hour))
	assert.Equal(t, "1 day", expiryText(24*time.Hour))
	assert.Equal(t, "36h0m0s", expiryText(36*time.Hour))
}
