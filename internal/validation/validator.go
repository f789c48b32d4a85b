package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^[\d\s\+\-\(\)]+$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
)

// isoLayouts are the instant formats accepted for reservation_time. Values
// without an offset are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// New returns a validator with the custom tags used by request inputs:
// phone, ymd, hms, iso8601, notblank, notpast and withinyear.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	mustRegister(v, "phone", func(fl validatorv10.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "notblank", func(fl validatorv10.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(v, "ymd", func(fl validatorv10.FieldLevel) bool {
		s := fl.Field().String()
		if !datePattern.MatchString(s) {
			return false
		}
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	})
	mustRegister(v, "hms", func(fl validatorv10.FieldLevel) bool {
		s := fl.Field().String()
		if !clockPattern.MatchString(s) {
			return false
		}
		_, err := time.Parse("15:04:05", s)
		return err == nil
	})
	mustRegister(v, "iso8601", func(fl validatorv10.FieldLevel) bool {
		_, err := ParseInstant(fl.Field().String())
		return err == nil
	})
	// notpast and withinyear compare a YYYY-MM-DD field against the Today
	// field of the same struct.
	mustRegister(v, "notpast", func(fl validatorv10.FieldLevel) bool {
		day, today, ok := dayAndToday(fl)
		return !ok || !day.Before(today)
	})
	mustRegister(v, "withinyear", func(fl validatorv10.FieldLevel) bool {
		day, today, ok := dayAndToday(fl)
		return !ok || !day.After(today.AddDate(1, 0, 0))
	})

	return v
}

func mustRegister(v *validatorv10.Validate, tag string, fn validatorv10.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func dayAndToday(fl validatorv10.FieldLevel) (day, today time.Time, ok bool) {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	tf := parent.FieldByName("Today")
	if !tf.IsValid() {
		return time.Time{}, time.Time{}, false
	}
	now, isTime := tf.Interface().(time.Time)
	if !isTime || now.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	loc := now.Location()
	day, err := time.ParseInLocation("2006-01-02", fl.Field().String(), loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := now.Date()
	return day, time.Date(y, m, d, 0, 0, 0, 0, loc), true
}

// ParseInstant parses an ISO-8601 date or date-time.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// message picks the client-facing text for the first failed rule. The msg
// struct tag holds either one message or "rule=message" pairs separated by
// ";" with an optional bare default.
func message(err error, in any) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	name := fe.StructField()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	t := reflect.TypeOf(in)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	f, ok := t.FieldByName(name)
	if !ok {
		return fe.Error()
	}
	return pickMessage(f.Tag.Get("msg"), fe.Tag(), fe.Error())
}

func pickMessage(tag, rule, fallback string) string {
	if tag == "" {
		return fallback
	}
	def := ""
	for _, part := range strings.Split(tag, ";") {
		if k, m, ok := strings.Cut(part, "="); ok && !strings.ContainsAny(k, " :") {
			if k == rule {
				return m
			}
			continue
		}
		def = part
	}
	if def != "" {
		return def
	}
	return fallback
}
