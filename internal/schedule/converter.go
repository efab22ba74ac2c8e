// Package schedule converts uploaded schedule workbooks into the JSON document the
// event frontend renders.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Worksheet names expected in a schedule workbook.
const (
	SheetSessions = "Sessions"
	SheetRooms    = "Rooms"
	SheetSpeakers = "Speakers"
)

// ErrUnreadable is returned when the upload is not a readable xlsx workbook.
var ErrUnreadable = errors.New("file is not a readable xlsx workbook")

// ValidationError collects every problem found in a workbook.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string { return strings.Join(e.Messages, ", ") }

func (e *ValidationError) add(format string, args ...any) {
	e.Messages = append(e.Messages, fmt.Sprintf(format, args...))
}

// Document is the converted schedule.
type Document struct {
	Version  string    `json:"version"`
	Timezone string    `json:"timezone"`
	Rooms    []Room    `json:"rooms"`
	Tracks   []Track   `json:"tracks"`
	Speakers []Speaker `json:"speakers"`
	Talks    []Talk    `json:"talks"`
}

// Room is a schedule location, keyed by the workbook room id.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track groups talks by topic.
type Track struct {
	Name string `json:"name"`
}

// Speaker is a presenter referenced from talks by Code.
type Speaker struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Biography string `json:"biography,omitempty"`
}

// Talk is one session with start and end in the world timezone.
type Talk struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Room     string   `json:"room,omitempty"`
	Track    string   `json:"track,omitempty"`
	Speakers []string `json:"speakers"`
}

var timeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"02.01.2006 15:04",
	"1/2/06 15:04",
}

// Converter turns xlsx workbooks into schedule JSON.
type Converter struct {
	now func() time.Time
}

// NewConverter creates a converter.
func NewConverter() *Converter {
	return &Converter{now: time.Now}
}

// Convert reads the workbook in r and returns the JSON schedule. Session times are
// interpreted in timezone (IANA name, empty for UTC).
func (c *Converter) Convert(r io.Reader, timezone string) ([]byte, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("unknown timezone %q", timezone)
		}
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrUnreadable
	}
	defer f.Close()

	doc, err := c.build(f, loc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (c *Converter) build(f *excelize.File, loc *time.Location) (*Document, error) {
	verr := &ValidationError{}
	doc := &Document{
		Version:  c.now().UTC().Format("2006-01-02T15:04:05Z"),
		Timezone: loc.String(),
		Rooms:    []Room{},
		Tracks:   []Track{},
		Speakers: []Speaker{},
		Talks:    []Talk{},
	}

	sessions, ok, err := readSheet(f, SheetSessions)
	if err != nil {
		return nil, err
	}
	if !ok {
		verr.add("sheet %q is missing", SheetSessions)
		return nil, verr
	}
	rooms, hasRooms, err := readSheet(f, SheetRooms)
	if err != nil {
		return nil, err
	}
	speakers, hasSpeakers, err := readSheet(f, SheetSpeakers)
	if err != nil {
		return nil, err
	}

	roomIDs := map[string]string{} // lower-cased name or id -> id
	if hasRooms {
		for i, row := range rooms.rows {
			name := rooms.get(row, "name")
			if name == "" {
				verr.add("%s row %d: missing name", SheetRooms, i+2)
				continue
			}
			id := rooms.get(row, "id")
			if id == "" {
				id = strconv.Itoa(len(doc.Rooms) + 1)
			}
			doc.Rooms = append(doc.Rooms, Room{ID: id, Name: name})
			roomIDs[strings.ToLower(name)] = id
			roomIDs[strings.ToLower(id)] = id
		}
	}

	speakerCodes := map[string]string{}
	if hasSpeakers {
		for i, row := range speakers.rows {
			name := speakers.get(row, "name")
			if name == "" {
				verr.add("%s row %d: missing name", SheetSpeakers, i+2)
				continue
			}
			code := speakers.get(row, "id")
			if code == "" {
				code = strconv.Itoa(len(doc.Speakers) + 1)
			}
			doc.Speakers = append(doc.Speakers, Speaker{Code: code, Name: name, Biography: speakers.get(row, "biography")})
			speakerCodes[strings.ToLower(name)] = code
			speakerCodes[strings.ToLower(code)] = code
		}
	}

	for _, col := range []string{"id", "title", "start", "end"} {
		if _, ok := sessions.cols[col]; !ok {
			verr.add("%s: missing column %q", SheetSessions, col)
		}
	}
	if len(verr.Messages) > 0 {
		return nil, verr
	}

	seen := map[string]bool{}
	tracks := map[string]bool{}
	for i, row := range sessions.rows {
		line := i + 2
		talk := Talk{
			ID:       sessions.get(row, "id"),
			Title:    sessions.get(row, "title"),
			Abstract: sessions.get(row, "abstract"),
			Track:    sessions.get(row, "track"),
			Speakers: []string{},
		}
		if talk.ID == "" && talk.Title == "" {
			continue // blank line
		}
		if talk.ID == "" {
			verr.add("%s row %d: missing id", SheetSessions, line)
		} else if seen[talk.ID] {
			verr.add("%s row %d: duplicate id %q", SheetSessions, line, talk.ID)
		}
		seen[talk.ID] = true
		if talk.Title == "" {
			verr.add("%s row %d: missing title", SheetSessions, line)
		}

		start, errStart := parseTime(sessions.get(row, "start"), loc)
		end, errEnd := parseTime(sessions.get(row, "end"), loc)
		switch {
		case errStart != nil:
			verr.add("%s row %d: invalid start %q", SheetSessions, line, sessions.get(row, "start"))
		case errEnd != nil:
			verr.add("%s row %d: invalid end %q", SheetSessions, line, sessions.get(row, "end"))
		case !end.After(start):
			verr.add("%s row %d: end is not after start", SheetSessions, line)
		default:
			talk.Start, talk.End = start.Format(time.RFC3339), end.Format(time.RFC3339)
		}

		if room := sessions.get(row, "room"); room != "" {
			id, known := roomIDs[strings.ToLower(room)]
			switch {
			case known:
				talk.Room = id
			case hasRooms:
				verr.add("%s row %d: unknown room %q", SheetSessions, line, room)
			default:
				id = strconv.Itoa(len(doc.Rooms) + 1)
				doc.Rooms = append(doc.Rooms, Room{ID: id, Name: room})
				roomIDs[strings.ToLower(room)] = id
				talk.Room = id
			}
		}

		for _, name := range splitList(sessions.get(row, "speakers")) {
			code, known := speakerCodes[strings.ToLower(name)]
			switch {
			case known:
			case hasSpeakers:
				verr.add("%s row %d: unknown speaker %q", SheetSessions, line, name)
				continue
			default:
				code = strconv.Itoa(len(doc.Speakers) + 1)
				doc.Speakers = append(doc.Speakers, Speaker{Code: code, Name: name})
				speakerCodes[strings.ToLower(name)] = code
			}
			talk.Speakers = append(talk.Speakers, code)
		}

		if talk.Track != "" && !tracks[talk.Track] {
			tracks[talk.Track] = true
			doc.Tracks = append(doc.Tracks, Track{Name: talk.Track})
		}
		doc.Talks = append(doc.Talks, talk)
	}

	if len(verr.Messages) > 0 {
		return nil, verr
	}
	return doc, nil
}

type sheet struct {
	cols map[string]int
	rows [][]string
}

func (s *sheet) get(row []string, col string) string {
	i, ok := s.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// readSheet returns the rows below the header of a sheet, matching sheet and column
// names case-insensitively.
func readSheet(f *excelize.File, name string) (*sheet, bool, error) {
	actual := ""
	for _, s := range f.GetSheetList() {
		if strings.EqualFold(s, name) {
			actual = s
			break
		}
	}
	if actual == "" {
		return nil, false, nil
	}
	rows, err := f.GetRows(actual, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, false, fmt.Errorf("read sheet %s: %w", name, err)
	}
	s := &sheet{cols: map[string]int{}}
	if len(rows) == 0 {
		return s, true, nil
	}
	for i, h := range rows[0] {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s.cols[h] = i
		}
	}
	s.rows = rows[1:]
	return s, true, nil
}

// parseTime accepts text timestamps or raw Excel date serials.
func parseTime(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, err
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, err
	}
	// Serials carry wall-clock time without a zone.
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
