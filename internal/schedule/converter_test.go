package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			r := row
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func fixedConverter() *Converter {
	return &Converter{now: func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }}
}

func TestConvert(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Sessions": {
			{"ID", "Title", "Start", "End", "Room", "Speakers", "Track"},
			{"t1", "Opening", "2024-05-02 09:00", "2024-05-02 09:30", "Main Stage", "Ada, Grace", "Plenary"},
			{"t2", "Deep dive", "2024-05-02 10:00", "2024-05-02 11:00", "Workshop", "Ada", ""},
			{"", "", "", "", "", "", ""},
		},
	})

	out, err := fixedConverter().Convert(buf, "Europe/Berlin")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Talks) != 2 || len(doc.Rooms) != 2 || len(doc.Speakers) != 2 || len(doc.Tracks) != 1 {
		t.Fatalf("unexpected document shape: %+v", doc)
	}
	if doc.Talks[0].Start != "2024-05-02T09:00:00+02:00" {
		t.Fatalf("start = %q, want Berlin offset", doc.Talks[0].Start)
	}
	if got := strings.Join(doc.Talks[1].Speakers, ","); got != doc.Talks[0].Speakers[0] {
		t.Fatalf("speaker codes not reused: %q", got)
	}
	if doc.Version != "2024-05-01T08:00:00Z" {
		t.Fatalf("version = %q", doc.Version)
	}
}

func TestConvertWithRoomsAndSpeakersSheets(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Sessions": {
			{"id", "title", "start", "end", "room", "speakers"},
			{"t1", "Keynote", "2024-05-02 09:00", "2024-05-02 10:00", "r1", "s1"},
		},
		"Rooms":    {{"ID", "Name"}, {"r1", "Main Stage"}},
		"Speakers": {{"ID", "Name", "Biography"}, {"s1", "Ada", "Mathematician"}},
	})

	out, err := fixedConverter().Convert(buf, "")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Talks[0].Room != "r1" || doc.Talks[0].Speakers[0] != "s1" || doc.Speakers[0].Biography != "Mathematician" {
		t.Fatalf("unexpected talk %+v", doc.Talks[0])
	}
}

func TestConvertValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		sheets map[string][][]any
		want   []string
	}{
		{
			"missing sessions sheet",
			map[string][][]any{"Other": {{"a"}}},
			[]string{`sheet "Sessions" is missing`},
		},
		{
			"missing columns",
			map[string][][]any{"Sessions": {{"ID", "Title"}}},
			[]string{`Sessions: missing column "start"`, `Sessions: missing column "end"`},
		},
		{
			"bad rows",
			map[string][][]any{
				"Sessions": {
					{"ID", "Title", "Start", "End", "Room"},
					{"t1", "", "2024-05-02 09:00", "2024-05-02 10:00", ""},
					{"t1", "Dup", "2024-05-02 11:00", "2024-05-02 10:00", ""},
					{"t3", "Bad", "tomorrow", "2024-05-02 10:00", "Nowhere"},
				},
				"Rooms": {{"Name"}, {"Main"}},
			},
			[]string{
				"Sessions row 2: missing title",
				`Sessions row 3: duplicate id "t1"`,
				"Sessions row 3: end is not after start",
				`Sessions row 4: invalid start "tomorrow"`,
				`Sessions row 4: unknown room "Nowhere"`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixedConverter().Convert(workbook(t, tt.sheets), "UTC")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if got := strings.Join(verr.Messages, "\n"); got != strings.Join(tt.want, "\n") {
				t.Fatalf("messages:\n%s\nwant:\n%s", got, strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestConvertRejectsGarbage(t *testing.T) {
	_, err := fixedConverter().Convert(strings.NewReader("not a zip"), "")
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("err = %v, want ErrUnreadable", err)
	}
	buf := workbook(t, map[string][][]any{"Sessions": {{"ID"}}})
	if _, err := fixedConverter().Convert(buf, "Mars/Olympus"); err == nil {
		t.Fatal("expected unknown timezone error")
	}
}
