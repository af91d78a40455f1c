package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// BaseURLFunc resolves the server base URL at call time so flags/env are
// read after parsing.
type BaseURLFunc func() string

// BaseURLFromEnv returns the HTTP API base URL from CONVEYOR_HTTP or a
// local default.
func BaseURLFromEnv() string {
	if v := os.Getenv("CONVEYOR_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

// postJSON posts a JSON body and decodes the JSON response into out (when
// non-nil). Non-2xx responses become errors carrying the server's message.
func postJSON(baseURL, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// getJSON fetches a path and decodes the JSON response into out.
func getJSON(baseURL, path string, out any) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// printJSON renders a value as indented JSON on stdout.
func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
