package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/scraper"
)

// CalendarScraper resolves courses from the undergraduate calendar. Each
// subject has one page (course-CS.html) where every course is a small table
// whose first cell holds <a name="CS136"> and whose second row holds the
// bold course title.
type CalendarScraper struct {
	client  *scraper.Client
	baseURL string
}

// NewCalendarScraper creates a calendar provider rooted at baseURL
// (e.g. https://ucalendar.uwaterloo.ca/2324/COURSE).
func NewCalendarScraper(client *scraper.Client, baseURL string) *CalendarScraper {
	return &CalendarScraper{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name identifies the provider in logs and metrics.
func (s *CalendarScraper) Name() string { return "calendar" }

// Lookup fetches the subject page and reads the course's title row.
func (s *CalendarScraper) Lookup(ctx context.Context, program, number string) (*CourseRecord, error) {
	program = strings.ToUpper(program)
	pageURL := fmt.Sprintf("%s/course-%s.html", s.baseURL, program)

	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("calendar %s%s: %w", program, number, err)
	}

	title := parseCalendarTitle(doc, program+number)
	if title == "" {
		return nil, fmt.Errorf("calendar %s%s: %w", program, number, apperrors.ErrNotFound)
	}

	return &CourseRecord{
		Program: program,
		Number:  number,
		Title:   title,
		URL:     calendarURL(s.baseURL, program, number),
		Source:  s.Name(),
	}, nil
}

func parseCalendarTitle(doc *goquery.Document, anchor string) string {
	a := doc.Find(fmt.Sprintf(`a[name="%s"]`, anchor)).First()
	if a.Length() == 0 {
		return ""
	}

	rows := a.Closest("table").Find("tr")
	if rows.Length() < 2 {
		return ""
	}
	return strings.Join(strings.Fields(rows.Eq(1).Find("b").First().Text()), " ")
}
