package mockapi

import (
	"regexp"
	"strings"
	"time"

	"github.com/yukikurage/task-management-front/domain"
)

var (
	datePattern     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	relativeDays    = []relativeDay{{"tomorrow", 1}, {"明日", 1}, {"today", 0}, {"今日", 0}}
	segmentBreakers = func(r rune) bool { return r == '\n' || r == '。' || r == ';' }
	bulletPrefixes  = []string{"- ", "* ", "・", "•"}
)

type relativeDay struct {
	word   string
	offset int
}

// generateDrafts proposes one draft per line or sentence of text. A date in
// ISO form, or a relative day word, becomes the draft's due date at local
// midnight in loc.
func generateDrafts(text string, now time.Time, loc *time.Location) []domain.TaskDraft {
	drafts := []domain.TaskDraft{}
	for _, segment := range strings.FieldsFunc(text, segmentBreakers) {
		title := strings.TrimSpace(segment)
		for _, p := range bulletPrefixes {
			title = strings.TrimSpace(strings.TrimPrefix(title, p))
		}

		var due *time.Time
		if m := datePattern.FindString(title); m != "" {
			if t, err := time.ParseInLocation(domain.DateLayout, m, loc); err == nil {
				due = &t
				title = strings.Replace(title, m, "", 1)
			}
		}
		if due == nil {
			lower := strings.ToLower(title)
			for _, rd := range relativeDays {
				idx := strings.Index(lower, rd.word)
				if idx < 0 || len(lower) != len(title) {
					continue
				}
				start, _ := domain.DayBounds(now, loc)
				t := start.AddDate(0, 0, rd.offset)
				due = &t
				title = title[:idx] + title[idx+len(rd.word):]
				break
			}
		}

		title = strings.Join(strings.Fields(title), " ")
		if title == "" {
			continue
		}
		drafts = append(drafts, domain.TaskDraft{Title: title, DueDate: due})
	}
	return drafts
}
