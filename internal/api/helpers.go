package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"odatagate/internal/edm"
)

const (
	dateLayout      = "2006-01-02"
	timeOfDayLayout = "15:04:05.999999999"
)

// writeEntity пишет запись как JSON-объект в порядке свойств записи.
func writeEntity(buf *bytes.Buffer, et *edm.EntityType, e *edm.Entity, context string) error {
	buf.WriteByte('{')
	first := true
	if context != "" {
		buf.WriteString(`"@odata.context":`)
		writeString(buf, context)
		first = false
	}
	for _, p := range e.Properties {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeString(buf, p.Name)
		buf.WriteByte(':')
		var t edm.FullQualifiedName
		if et != nil {
			if prop, ok := et.Property(p.Name); ok {
				t = prop.Type
			}
		}
		if err := writeValue(buf, t, p.Value); err != nil {
			return errors.Wrapf(err, "property '%s'", p.Name)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeCollection(buf *bytes.Buffer, et *edm.EntityType, c *edm.EntityCollection, context string) error {
	buf.WriteString(`{"@odata.context":`)
	writeString(buf, context)
	buf.WriteString(`,"value":[`)
	for i, e := range c.Entities {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeEntity(buf, et, e, ""); err != nil {
			return err
		}
	}
	buf.WriteString("]}")
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func writeValue(buf *bytes.Buffer, t edm.FullQualifiedName, v any) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	if items, ok := v.([]any); ok {
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, t, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}
	b, err := json.Marshal(formatValue(t, v))
	if err != nil {
		return err
	}
	// срезы примитивов ([]string, []int ...) json кодирует сам
	buf.Write(b)
	return nil
}

// formatValue приводит хост-значение к JSON-представлению OData.
func formatValue(t edm.FullQualifiedName, v any) any {
	switch x := v.(type) {
	case time.Duration:
		return formatISODuration(x)
	case []time.Duration:
		out := make([]string, len(x))
		for i, d := range x {
			out[i] = formatISODuration(d)
		}
		return out
	case time.Time:
		switch t {
		case edm.EdmDate:
			return x.Format(dateLayout)
		case edm.EdmTimeOfDay:
			return x.Format(timeOfDayLayout)
		}
		return x.Format(time.RFC3339Nano)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	}
	return v
}

// INF/NaN в JSON не бывает: OData пишет их строками.
func formatFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return f
}

// formatISODuration: 90m -> "PT1H30M", 1.5s -> "PT1.5S"
func formatISODuration(d time.Duration) string {
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	sb.WriteByte('P')
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		sb.WriteString(strconv.FormatInt(int64(days), 10))
		sb.WriteByte('D')
	}
	if d == 0 && days > 0 {
		return sb.String()
	}
	sb.WriteByte('T')
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	if h > 0 {
		sb.WriteString(strconv.FormatInt(int64(h), 10))
		sb.WriteByte('H')
	}
	if m > 0 {
		sb.WriteString(strconv.FormatInt(int64(m), 10))
		sb.WriteByte('M')
	}
	if d > 0 || (h == 0 && m == 0) {
		sb.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		sb.WriteByte('S')
	}
	return sb.String()
}

// parseISODuration понимает [-]P[nD][T[nH][nM][n[.n]S]].
func parseISODuration(s string) (time.Duration, error) {
	orig := s
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, errors.Errorf("invalid duration '%s'", orig)
	}
	s = s[1:]
	var total time.Duration
	inTime := false
	for s != "" {
		if s[0] == 'T' {
			if inTime {
				return 0, errors.Errorf("invalid duration '%s'", orig)
			}
			inTime = true
			s = s[1:]
			continue
		}
		i := 0
		for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, errors.Errorf("invalid duration '%s'", orig)
		}
		n, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, errors.Errorf("invalid duration '%s'", orig)
		}
		var unit time.Duration
		switch {
		case s[i] == 'D' && !inTime:
			unit = 24 * time.Hour
		case s[i] == 'H' && inTime:
			unit = time.Hour
		case s[i] == 'M' && inTime:
			unit = time.Minute
		case s[i] == 'S' && inTime:
			unit = time.Second
		default:
			return 0, errors.Errorf("invalid duration '%s'", orig)
		}
		total += time.Duration(n * float64(unit))
		s = s[i+1:]
	}
	if neg {
		total = -total
	}
	return total, nil
}
