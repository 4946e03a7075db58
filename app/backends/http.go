package backends

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"GoInlineAI/app/utils/restclient"
)

const defaultTimeout = 120 * time.Second

func newRestClient(baseURL string, d Descriptor, headers map[string]string) *restclient.RestClient {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return restclient.NewRestClient(baseURL, headers, timeout)
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// post sends one request and classifies the outcome: failures to reach the
// service or non-2xx replies are transport errors, an empty 2xx body is a
// response error.
func post(ctx context.Context, rc *restclient.RestClient, endpoint string, payload any) ([]byte, error) {
	body, status, err := rc.Post(ctx, endpoint, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendTransport, err)
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrBackendTransport, status, excerpt(body))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrBackendResponse)
	}
	return body, nil
}

func excerpt(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
