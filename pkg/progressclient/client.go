package progressclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSyncer 通过后端进度接口实现 Syncer
type HTTPSyncer struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPSyncer(baseURL, token string) *HTTPSyncer {
	return &HTTPSyncer{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// envelope 服务端统一响应结构
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *HTTPSyncer) GetProgress(lessonID uint) (*Record, error) {
	data, err := c.do(http.MethodGet, fmt.Sprintf("/api/progress/%d", lessonID), nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPSyncer) UpdateProgress(req UpdateRequest) (uint, error) {
	return c.postForRecordID("/api/progress", req)
}

func (c *HTTPSyncer) MarkComplete(lessonID, courseID, moduleID uint) (uint, error) {
	return c.postForRecordID("/api/progress/complete", map[string]uint{
		"lessonId": lessonID,
		"courseId": courseID,
		"moduleId": moduleID,
	})
}

func (c *HTTPSyncer) ResetProgress(lessonID uint) (uint, error) {
	return c.postForRecordID("/api/progress/reset", map[string]uint{
		"lessonId": lessonID,
	})
}

func (c *HTTPSyncer) postForRecordID(path string, body interface{}) (uint, error) {
	data, err := c.do(http.MethodPost, path, body)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 || string(data) == "null" {
		return 0, nil
	}

	var result struct {
		RecordID uint `json:"recordId"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, err
	}
	return result.RecordID, nil
}

func (c *HTTPSyncer) do(method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Message)
	}
	return env.Data, nil
}
