package repair

import (
	"time"

	"github.com/codemarcinu/OCR/internal/coerce"
	"github.com/codemarcinu/OCR/internal/receipt"
)

// Moment is a repaired purchase date and time.
type Moment struct {
	Date string
	Time string
}

// DateTime repairs the "data" and "godzina" fields. A nil argument means the
// key was absent. It always yields a value and never a date in the future.
func DateTime(rawDate, rawTime any, env *Env) Result[Moment] {
	return guard(env, "datetime", func() Result[Moment] {
		now := env.now()
		loc := now.Location()

		var fallback time.Time
		if rawDate == nil || rawTime == nil {
			fallback = now
			if env.SourceFile != "" {
				if fi, err := env.stat(env.SourceFile); err == nil {
					fallback = fi.ModTime().In(loc)
				}
			}
			env.warn("datetime", "purchase date or time missing, using fallback", "fallback", fallback.Format(time.RFC3339))
		}

		day := fallback
		if rawDate != nil {
			s, _ := coerce.String(rawDate)
			d, err := coerce.ParseDate(s)
			if err != nil {
				env.warn("datetime", "unreadable date, using today", "value", s)
				d = now
			}
			day = d
		}

		clock := fallback
		if rawTime != nil {
			s, _ := coerce.String(rawTime)
			c, err := coerce.ParseTime(s)
			if err != nil {
				env.warn("datetime", "unreadable time, using now", "value", s)
				c = now
			}
			clock = c
		}

		at := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		if at.After(now) {
			env.warn("datetime", "purchase date in the future, using now", "value", at.Format(time.RFC3339))
			at = now
		}
		return keep(Moment{Date: at.Format(receipt.DateLayout), Time: at.Format(receipt.TimeLayout)})
	})
}
