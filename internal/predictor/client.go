package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the symptom prediction backend. Matching, extraction and
// classification all happen remotely.
type Client interface {
	FuzzyMatch(ctx context.Context, query string) ([]string, error)
	ExtractAndPredict(ctx context.Context, sentence string) (*ExtractResult, error)
	Predict(ctx context.Context, symptoms []string) (string, error)
	ListSymptoms(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// ExtractResult is the consumed part of the /extract_and_predict/ response.
type ExtractResult struct {
	ExtractedSymptoms []string `json:"extracted_symptoms"`
	PredictedDisease  string   `json:"predicted_disease,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
}

type httpClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the backend at baseURL. A zero timeout means none.
func NewClient(baseURL string, timeout time.Duration) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type fuzzyRequest struct {
	Query string `json:"query"`
}

type fuzzyResponse struct {
	Matches []string `json:"matches"`
}

func (c *httpClient) FuzzyMatch(ctx context.Context, query string) ([]string, error) {
	var result fuzzyResponse
	if err := c.do(ctx, http.MethodPost, "/fuzzy_symptoms/", fuzzyRequest{Query: query}, &result); err != nil {
		return nil, fmt.Errorf("fuzzy match: %w", err)
	}
	if result.Matches == nil {
		return []string{}, nil
	}
	return result.Matches, nil
}

type extractRequest struct {
	Sentence string `json:"sentence"`
}

func (c *httpClient) ExtractAndPredict(ctx context.Context, sentence string) (*ExtractResult, error) {
	var result ExtractResult
	if err := c.do(ctx, http.MethodPost, "/extract_and_predict/", extractRequest{Sentence: sentence}, &result); err != nil {
		return nil, fmt.Errorf("extract and predict: %w", err)
	}
	if result.ExtractedSymptoms == nil {
		result.ExtractedSymptoms = []string{}
	}
	return &result, nil
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

type predictResponse struct {
	PredictedDisease string `json:"predicted_disease"`
}

func (c *httpClient) Predict(ctx context.Context, symptoms []string) (string, error) {
	var result predictResponse
	if err := c.do(ctx, http.MethodPost, "/predict/", predictRequest{Symptoms: symptoms}, &result); err != nil {
		return "", fmt.Errorf("predict: %w", err)
	}
	return result.PredictedDisease, nil
}

type symptomsResponse struct {
	Symptoms []string `json:"symptoms"`
}

func (c *httpClient) ListSymptoms(ctx context.Context) ([]string, error) {
	var result symptomsResponse
	if err := c.do(ctx, http.MethodGet, "/symptoms/", nil, &result); err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	if result.Symptoms == nil {
		return []string{}, nil
	}
	return result.Symptoms, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/ping/", nil, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// do sends body as JSON and decodes a 2xx response into out. Fields missing
// from the response are left at their zero value.
func (c *httpClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned status: %s, body: %s", resp.Status, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
