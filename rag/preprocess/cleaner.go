package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)

	// ligatures and typographic marks OCR and web copy leave behind
	artifacts = strings.NewReplacer(
		"ﬁ", "fi", "ﬂ", "fl",
		"—", "-", "–", "-",
		"·", ".", "•", "-",
		"\u00a0", " ",
		"\r\n", "\n",
	)
)

// DefaultNoise lists line fragments dropped by RemoveNoise.
var DefaultNoise = []string{
	"相关链接", "你可能还喜欢", "热门文章", "版权所有", "隐私政策", "广告",
	"Cookie", "All rights reserved", "Privacy Policy", "Subscribe to our newsletter",
}

// CleanBasic strips control characters, fixes OCR artifacts, collapses runs of
// spaces and limits blank lines to one.
func CleanBasic(text string) string {
	if text == "" {
		return ""
	}
	text = artifacts.Replace(text)
	text = strings.Map(func(r rune) rune {
		if r != '\n' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	text = spaceRun.ReplaceAllString(text, " ")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// HTMLToText extracts headings, paragraphs, list items, code and tables from an
// HTML page as markdown-flavoured paragraphs. Scripts, styles and navigation are
// ignored.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,nav,footer,header,aside").Remove()

	var out []string
	doc.Find("h1,h2,h3,h4,p,li,pre,table").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch name := goquery.NodeName(s); name {
		case "h1", "h2", "h3", "h4":
			out = append(out, strings.Repeat("#", int(name[1]-'0'))+" "+text)
		case "li":
			out = append(out, "- "+text)
		case "pre":
			out = append(out, "```\n"+text+"\n```")
		case "table":
			out = append(out, tableText(s))
		default:
			out = append(out, text)
		}
	})
	return strings.Join(out, "\n\n"), nil
}

func tableText(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(_ int, td *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(td.Text()))
		})
		if len(cols) > 0 {
			rows = append(rows, "| "+strings.Join(cols, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}

// RemoveDuplicateParagraphs keeps the first occurrence of every paragraph.
func RemoveDuplicateParagraphs(text string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n\n")
}

// RemoveNoise drops every line containing one of the patterns.
func RemoveNoise(text string, patterns []string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if !containsAny(l, patterns) {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Preprocess cleans raw text, drops DefaultNoise lines and repeated paragraphs.
func Preprocess(raw string) string {
	t := CleanBasic(raw)
	t = RemoveNoise(t, DefaultNoise)
	return RemoveDuplicateParagraphs(t)
}
