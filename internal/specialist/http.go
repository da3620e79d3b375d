package specialist

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/antoniostano/tutorcore/internal/routing"
)

// HTTPRegistry dispatches to per-subject HTTP generator endpoints. Each
// endpoint is expected to stream newline-delimited JSON objects shaped
// like {"delta": "..."}; lines with no delta are skipped, and the turn
// ends when the stream closes.
type HTTPRegistry struct {
	endpoints map[routing.SubjectRoute]string
	client    *http.Client
}

func NewHTTPRegistry(math, history, english string) *HTTPRegistry {
	endpoints := map[routing.SubjectRoute]string{}
	if strings.TrimSpace(math) != "" {
		endpoints[routing.SubjectMath] = math
	}
	if strings.TrimSpace(history) != "" {
		endpoints[routing.SubjectHistory] = history
	}
	if strings.TrimSpace(english) != "" {
		endpoints[routing.SubjectEnglish] = english
	}
	return &HTTPRegistry{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 0}, // streaming call, bounded by ctx instead
	}
}

type specialistRequest struct {
	Utterance string `json:"utterance"`
}

type specialistChunk struct {
	Delta string `json:"delta"`
}

func (r *HTTPRegistry) Open(ctx context.Context, subject routing.SubjectRoute, utterance string) (<-chan Delta, error) {
	if subject == routing.SubjectEscalate {
		return staticStream(escalationMessage), nil
	}

	url, ok := r.endpoints[subject]
	if !ok {
		// No endpoint configured for this subject: fall back to the english
		// endpoint. If english has none either, that is an operator
		// misconfiguration, so surface it as an error instead of pretending.
		url, ok = r.endpoints[routing.SubjectEnglish]
		if !ok {
			return nil, fmt.Errorf("no specialist endpoint configured for subject %q", subject)
		}
	}

	payload, err := json.Marshal(specialistRequest{Utterance: utterance})
	if err != nil {
		return nil, fmt.Errorf("marshal specialist request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create specialist request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call specialist: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		res.Body.Close()
		return nil, fmt.Errorf("specialist http status %d", res.StatusCode)
	}

	out := make(chan Delta, 8)
	go func() {
		defer close(out)
		defer res.Body.Close()

		scanner := bufio.NewScanner(res.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				out <- Delta{Err: ctx.Err()}
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk specialistChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if chunk.Delta == "" {
				continue
			}
			out <- Delta{Text: chunk.Delta}
		}
		if err := scanner.Err(); err != nil {
			out <- Delta{Err: fmt.Errorf("specialist stream read: %w", err)}
		}
	}()

	return out, nil
}
