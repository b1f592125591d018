package http

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parakh/adaptive-exam/internal/exam"
)

const maxImportBytes = 8 << 20

type questionRow struct {
	ID            string `json:"id"`
	Subject       string `json:"subject"`
	Difficulty    string `json:"difficulty"`
	Topic         string `json:"topic"`
	Content       string `json:"content"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption string `json:"correct_option"`
}

// ImportQuestionsHandler accepts either a multipart file= (CSV or JSON) or a
// raw JSON array in the body, and upserts the rows by id.
func ImportQuestionsHandler(pool exam.QuestionAdmin, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

		var rows []questionRow
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			rows, err = decodeQuestions(f)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		} else {
			if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
				http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
				return
			}
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusOK, map[string]any{"inserted": 0, "updated": 0})
			return
		}

		qs := make([]exam.Question, 0, len(rows))
		for i, row := range rows {
			q, err := row.toQuestion()
			if err != nil {
				http.Error(w, fmt.Sprintf("row %d: %v", i+1, err), http.StatusBadRequest)
				return
			}
			qs = append(qs, q)
		}

		ins, upd, err := pool.PutQuestions(r.Context(), qs)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		log.InfoContext(r.Context(), "questions imported", "inserted", ins, "updated", upd)
		writeJSON(w, http.StatusOK, map[string]any{"inserted": ins, "updated": upd})
	}
}

func (row questionRow) toQuestion() (exam.Question, error) {
	d, err := exam.ParseDifficulty(row.Difficulty)
	if err != nil {
		return exam.Question{}, err
	}
	opt, err := exam.ParseOption(row.CorrectOption)
	if err != nil {
		return exam.Question{}, err
	}
	q := exam.Question{
		ID:            strings.TrimSpace(row.ID),
		Subject:       strings.TrimSpace(row.Subject),
		Difficulty:    d,
		Topic:         strings.TrimSpace(row.Topic),
		Content:       strings.TrimSpace(row.Content),
		OptionA:       row.OptionA,
		OptionB:       row.OptionB,
		OptionC:       row.OptionC,
		OptionD:       row.OptionD,
		CorrectOption: opt,
	}
	return q, nil
}

// decodeQuestions sniffs JSON vs CSV by the first non-space byte.
func decodeQuestions(r io.Reader) ([]questionRow, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil, errors.New("empty file")
		}
		if b[0] == ' ' || b[0] == '\t' || b[0] == '\r' || b[0] == '\n' {
			_, _ = br.ReadByte()
			continue
		}
		if b[0] == '[' {
			var rows []questionRow
			if err := json.NewDecoder(br).Decode(&rows); err != nil {
				return nil, errors.New("bad json")
			}
			return rows, nil
		}
		rows, err := parseQuestionCSV(br)
		if err != nil {
			return nil, fmt.Errorf("bad csv: %w", err)
		}
		return rows, nil
	}
}

var requiredColumns = []string{"subject", "difficulty", "content",
	"option_a", "option_b", "option_c", "option_d", "correct_option"}

func parseQuestionCSV(r io.Reader) ([]questionRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range requiredColumns {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	var rows []questionRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, questionRow{
			ID:            col(rec, "id"),
			Subject:       col(rec, "subject"),
			Difficulty:    col(rec, "difficulty"),
			Topic:         col(rec, "topic"),
			Content:       col(rec, "content"),
			OptionA:       col(rec, "option_a"),
			OptionB:       col(rec, "option_b"),
			OptionC:       col(rec, "option_c"),
			OptionD:       col(rec, "option_d"),
			CorrectOption: col(rec, "correct_option"),
		})
	}
	return rows, nil
}
