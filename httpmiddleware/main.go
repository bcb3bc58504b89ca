package httpmiddleware

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var httpClient = &http.Client{
	Timeout:   120 * time.Second,
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

type HttpRequestStruct struct {
	Method  string
	Url     string
	Body    io.Reader
	Headers map[string]string
}

// HttpRequest performs the request and returns the response body. Any
// non-2xx status is returned as an error carrying the body text.
func HttpRequest(args HttpRequestStruct) ([]byte, error) {
	status, body, err := HttpRequestWithStatus(args)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("request to %s failed with status %d: %s", args.Url, status, string(body))
	}
	return body, nil
}

// HttpRequestWithStatus performs the request and hands the status code and
// body back to the caller. Used where upstream error bodies must be
// surfaced as-is instead of being folded into an error string.
func HttpRequestWithStatus(args HttpRequestStruct) (int, []byte, error) {
	req, err := http.NewRequest(args.Method, args.Url, args.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("could not build request: %w", err)
	}

	for key, value := range args.Headers {
		req.Header.Set(key, value)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("could not read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}
