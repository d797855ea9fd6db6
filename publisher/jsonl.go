package publisher

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"chain_of_density/generator"
)

// SystemPrompt is the instruction stored with every fine-tuning record.
const SystemPrompt = "Summarize the article into a dense, self-contained summary of about 80 words that covers its most informative entities. Respond with a JSON object {\"summary\": string}."

// FineTuneRecord is one line of the fine-tuning file in chat "messages"
// format.
type FineTuneRecord struct {
	Messages []generator.Message `json:"messages"`
}

// NewFineTuneRecord pairs an article with its final summary.
func NewFineTuneRecord(article generator.Article, final generator.Summary) (FineTuneRecord, error) {
	out, err := json.Marshal(struct {
		Summary string `json:"summary"`
	}{final.Text})
	if err != nil {
		return FineTuneRecord{}, err
	}
	return FineTuneRecord{Messages: []generator.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: generator.RoleUser, Content: article.Text},
		{Role: generator.RoleAssistant, Content: string(out)},
	}}, nil
}

// JSONLRecorder appends one FineTuneRecord per recorded chain. It is safe
// for concurrent use; every record is flushed before Record returns.
type JSONLRecorder struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	count  int
}

var _ generator.Recorder = (*JSONLRecorder)(nil)

// NewJSONLRecorder writes to w. Close does not close w.
func NewJSONLRecorder(w io.Writer) *JSONLRecorder {
	return &JSONLRecorder{w: bufio.NewWriter(w)}
}

// OpenJSONL opens path for appending, creating parent directories.
func OpenJSONL(path string) (*JSONLRecorder, error) {
	if path == "" {
		return nil, errors.New("jsonl path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	r := NewJSONLRecorder(f)
	r.closer = f
	return r, nil
}

func (r *JSONLRecorder) Record(ctx context.Context, article generator.Article, final generator.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := NewFineTuneRecord(article, final)
	if err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return errors.New("jsonl recorder is closed")
	}
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	r.count++
	return nil
}

// Count is the number of records written.
func (r *JSONLRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Flush()
	r.w = nil
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
