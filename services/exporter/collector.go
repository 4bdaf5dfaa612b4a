package exporter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gradeport-backend/lib/browser"
	"gradeport-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	selCourseDateBlock = ".ins_col_block--EK\\+mW .text-weight-300"
	selNextPageButton  = "button.pageItem--BNJmT.sides--EdMyh:has(span.icon-chevron-right)"
)

const courseDateLayout = "Jan 02, 2006"

// maxCatalogPages caps the pagination walk so a portal that keeps the
// next button enabled forever cannot stall collection.
const maxCatalogPages = 50

// parseCourseDates splits a "Jul 07, 2025 - Jul 08, 2026" range.
// Either side may be missing or unparsable, which is not an error.
func parseCourseDates(text string) (start *time.Time, end *time.Time) {
	parts := strings.SplitN(text, " - ", 2)
	if len(parts) > 0 {
		if t, err := time.Parse(courseDateLayout, strings.TrimSpace(parts[0])); err == nil {
			start = &t
		}
	}
	if len(parts) > 1 {
		if t, err := time.Parse(courseDateLayout, strings.TrimSpace(parts[1])); err == nil {
			end = &t
		}
	}
	return start, end
}

// CollectCatalog logs in once and enumerates every course visible to
// the operator across the paginated listing, deduplicated by URL.
func (s Service) CollectCatalog(ctx context.Context) ([]CollectedCourse, error) {
	ctx, span := tracer.Start(ctx, "CollectCatalog")
	defer span.End()

	tempDir, err := os.MkdirTemp("", "gradeport_catalog_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	session, err := s.factory.NewSession(ctx, tempDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start browser session")
		return nil, err
	}
	defer session.Close(context.WithoutCancel(ctx))

	sl := &slot{
		session:  session,
		creds:    s.opts.Credentials,
		baseUrl:  s.opts.BaseUrl,
		timeouts: s.opts.Timeouts,
	}
	err = sl.ensureLoggedIn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return nil, ErrLoginFailed
	}

	courses, err := collectCourses(ctx, sl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collection failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("courses", len(courses)))
	return courses, nil
}

func collectCourses(ctx context.Context, sl *slot) ([]CollectedCourse, error) {
	session := sl.session

	// an empty first page is an authentication or rendering problem,
	// not an empty catalog
	if !session.WaitFor(ctx, selCourseCard, browser.StateVisible, sl.timeouts.ElementWait) {
		return nil, fmt.Errorf("no courses rendered on the first listing page")
	}

	seenUrls := map[string]bool{}
	var ids, urls, names []string
	var starts, ends []*time.Time

	for page := 1; page <= maxCatalogPages; page++ {
		source, err := session.PageSource(ctx)
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
		if err != nil {
			return nil, err
		}

		found := 0
		doc.Find(selCourseCard).Each(func(_ int, anchor *goquery.Selection) {
			href := htmlutil.GetAttr(anchor, "href")
			name := ""
			if len(anchor.Nodes) > 0 {
				name = strings.Join(strings.Fields(htmlutil.GetText(anchor.Nodes[0])), " ")
			}
			if name == "" {
				name = htmlutil.GetAttr(anchor, "title")
			}
			if href == "" || name == "" {
				return
			}
			found++

			fullUrl := sl.baseUrl + href
			if seenUrls[fullUrl] {
				return
			}
			seenUrls[fullUrl] = true

			id := ""
			if parts := strings.SplitN(href, "=", 2); len(parts) == 2 {
				id = strings.TrimSpace(parts[1])
			}

			start, end := parseCourseDates(courseDateText(anchor))

			ids = append(ids, id)
			urls = append(urls, fullUrl)
			names = append(names, name)
			starts = append(starts, start)
			ends = append(ends, end)
		})

		if page == 1 && found == 0 {
			return nil, fmt.Errorf("no courses rendered on the first listing page")
		}

		if !nextPageAvailable(doc) {
			break
		}
		err = session.ForceClick(ctx, selNextPageButton)
		if err != nil {
			break
		}
		if !session.WaitFor(ctx, selCourseCard, browser.StateVisible, sl.timeouts.ElementWait) {
			break
		}
	}

	// positional correspondence is what gives every downstream course
	// its identity; refuse to return shifted lists
	if len(urls) != len(names) || len(urls) != len(ids) {
		return nil, fmt.Errorf(
			"collected %d urls, %d names and %d ids; refusing to return mismatched lists",
			len(urls), len(names), len(ids),
		)
	}

	courses := make([]CollectedCourse, len(urls))
	for i := range urls {
		courses[i] = CollectedCourse{
			CourseId:   ids[i],
			CourseName: names[i],
			CourseUrl:  urls[i],
			StartDate:  starts[i],
			EndDate:    ends[i],
		}
	}
	return courses, nil
}

// courseDateText walks up from the course anchor to the nearest
// ancestor carrying a date block and returns its text.
func courseDateText(anchor *goquery.Selection) string {
	for p := anchor.Parent(); p.Length() > 0; p = p.Parent() {
		d := p.Find(selCourseDateBlock)
		if d.Length() > 0 {
			return strings.TrimSpace(d.First().Text())
		}
	}
	return ""
}

func nextPageAvailable(doc *goquery.Document) bool {
	next := doc.Find("button.pageItem--BNJmT.sides--EdMyh").FilterFunction(
		func(_ int, b *goquery.Selection) bool {
			return b.Find("span.icon-chevron-right").Length() > 0
		},
	)
	if next.Length() == 0 {
		return false
	}
	_, disabled := next.First().Attr("disabled")
	return !disabled
}
