package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prepflow/prepflow/internal/interview"
)

const defaultTimeout = 20 * time.Second

// GradeRequest is the wire format sent to the remote grading service.
type GradeRequest struct {
	Question       string `json:"question"`
	QuestionType   string `json:"questionType"`
	Answer         string `json:"answer"`
	JobTitle       string `json:"jobTitle"`
	JobDescription string `json:"jobDescription"`
	ResumeContext  string `json:"resumeContext,omitempty"`
}

// GradeResponse is the wire format returned by the remote grading service.
type GradeResponse struct {
	Score        int      `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	SampleAnswer string   `json:"sampleAnswer"`
}

// RemoteClient calls the external grading service. Any transport failure,
// non-2xx status, or malformed body is returned as an error so the caller
// can fall back to the local grader.
type RemoteClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewRemoteClient creates a grading client with the given API key.
func NewRemoteClient(apiKey, baseURL string) *RemoteClient {
	return &RemoteClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Grade submits the answer for remote scoring.
func (c *RemoteClient) Grade(ctx context.Context, q interview.Question, answer string, ictx interview.Context) (interview.Feedback, error) {
	reqBody := GradeRequest{
		Question:       q.Text,
		QuestionType:   string(q.Type),
		Answer:         answer,
		JobTitle:       ictx.JobTitle,
		JobDescription: ictx.JobDescription,
		ResumeContext:  ictx.Resume.Summary,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return interview.Feedback{}, fmt.Errorf("marshaling grade request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/grade", bytes.NewReader(body))
	if err != nil {
		return interview.Feedback{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return interview.Feedback{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return interview.Feedback{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var graded GradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&graded); err != nil {
		return interview.Feedback{}, fmt.Errorf("decoding grade response: %w", err)
	}

	if graded.Score < 0 || graded.Score > 100 {
		return interview.Feedback{}, fmt.Errorf("grade score %d out of range", graded.Score)
	}

	return interview.Feedback{
		Score:        graded.Score,
		Strengths:    graded.Strengths,
		Improvements: graded.Improvements,
		SampleAnswer: graded.SampleAnswer,
	}, nil
}
