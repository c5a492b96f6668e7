package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/chaumint/mintd/api"
)

// apiClient is a minimal JSON-over-HTTP client for mintd's API layer.
type apiClient struct {
	addr   string
	apiKey string
}

func newClient(addr, apiKey string) *apiClient {
	return &apiClient{addr: addr, apiKey: apiKey}
}

func (c *apiClient) get(path string, out interface{}) error {
	resp, err := api.HttpGET(c.addr+path, c.apiKey)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrError(resp.StatusCode, resp.Body, out)
}

func (c *apiClient) post(path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := api.HttpPOST(c.addr+path, c.apiKey, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrError(resp.StatusCode, resp.Body, out)
}

func decodeOrError(statusCode int, body io.Reader, out interface{}) error {
	if statusCode >= 400 {
		var apiErr api.Error
		if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
			return fmt.Errorf("request failed with status %d", statusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(body).Decode(out)
}
