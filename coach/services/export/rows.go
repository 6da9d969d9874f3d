package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"essaycoach/coach/transcript"
)

// Header is the first line of every chat log.
var Header = []string{"date", "time", "role", "content", "length", "response_time"}

// Row is one exported, non-system turn.
type Row struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	Length       int    `json:"length"`
	ResponseTime string `json:"response_time"`
}

func (r Row) record() []string {
	return []string{r.Date, r.Time, r.Role, r.Content, strconv.Itoa(r.Length), r.ResponseTime}
}

// BuildRows filters out system turns, stamps anything still unstamped and
// derives response times over what remains.
func BuildRows(turns []transcript.Turn, annotator *transcript.Annotator) ([]Row, error) {
	visible := transcript.WithoutSystem(turns)
	for i := range visible {
		visible[i] = annotator.Annotate(visible[i])
	}
	timed, err := transcript.ResponseTimes(visible, annotator.Location())
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(timed))
	for _, t := range timed {
		date, clock, err := t.DateTime()
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Date:         date,
			Time:         clock,
			Role:         string(t.Role),
			Content:      t.Content,
			Length:       t.Length,
			ResponseTime: t.ResponseTimeField(),
		})
	}
	return rows, nil
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a chat log written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range Header {
		if head[i] != h {
			return nil, fmt.Errorf("unexpected column %d: %q", i, head[i])
		}
	}
	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		length, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad length: %w", len(rows)+1, err)
		}
		rows = append(rows, Row{Date: rec[0], Time: rec[1], Role: rec[2], Content: rec[3], Length: length, ResponseTime: rec[5]})
	}
}
