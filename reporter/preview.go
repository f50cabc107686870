package reporter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"bughunter/apperr"
	"bughunter/logger"
)

// PagePreview counts the elements of a page that the bug families target.
type PagePreview struct {
	URL            string   `json:"url,omitempty"`
	Title          string   `json:"title,omitempty"`
	Links          int      `json:"links"`
	LinksNoHref    int      `json:"links_without_href"`
	Buttons        int      `json:"buttons"`
	EmptyButtons   int      `json:"empty_buttons"`
	Forms          int      `json:"forms"`
	Images         int      `json:"images"`
	ImagesNoAlt    int      `json:"images_without_alt"`
	HiddenElements int      `json:"hidden_elements"`
	Snippets       []string `json:"snippets,omitempty"`
}

// maxPreviewSnippets bounds how many suspicious fragments a preview keeps.
const maxPreviewSnippets = 10

// Preview fetches a generated page and inspects it.
func (a *Actions) Preview(ctx context.Context, pageURL string) (PagePreview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return PagePreview{}, apperr.Wrap(apperr.ErrCodeValidation, "invalid page URL", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		logger.Warn("preview.fetch: request failed", zap.String("url", pageURL), zap.Error(err))
		return PagePreview{}, apperr.Wrap(apperr.ErrCodeTransport, "fetch generated page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PagePreview{}, apperr.New(apperr.ErrCodeStatus, fmt.Sprintf("fetch generated page: status=%d", resp.StatusCode))
	}

	p, err := PreviewHTML(resp.Body)
	if err != nil {
		return PagePreview{}, err
	}
	p.URL = pageURL
	logger.Info("preview.fetch: done", zap.String("url", pageURL), zap.Int("links", p.Links), zap.Int("buttons", p.Buttons))
	return p, nil
}

// PreviewHTML inspects HTML from r.
func PreviewHTML(r io.Reader) (PagePreview, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return PagePreview{}, apperr.Wrap(apperr.ErrCodeDecode, "parse HTML", err)
	}

	var p PagePreview
	p.Title = strings.TrimSpace(doc.Find("title").First().Text())

	links := doc.Find("a")
	p.Links = links.Length()
	links.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			p.LinksNoHref++
			p.addSnippet(s)
		}
	})

	buttons := doc.Find(`button, input[type="submit"], input[type="button"]`)
	p.Buttons = buttons.Length()
	doc.Find("button").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) == "" {
			p.EmptyButtons++
			p.addSnippet(s)
		}
	})

	p.Forms = doc.Find("form").Length()

	images := doc.Find("img")
	p.Images = images.Length()
	doc.Find("img:not([alt])").Each(func(_ int, s *goquery.Selection) {
		p.ImagesNoAlt++
		p.addSnippet(s)
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			p.HiddenElements++
			p.addSnippet(s)
		}
	})

	return p, nil
}

func (p *PagePreview) addSnippet(s *goquery.Selection) {
	if len(p.Snippets) >= maxPreviewSnippets {
		return
	}
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return
	}
	p.Snippets = append(p.Snippets, html)
}
