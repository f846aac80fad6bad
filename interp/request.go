package interp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"
)

// RequestSpec is the fully-substituted, ready-to-send shape of a Request
// step.
type RequestSpec struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string // already spliced/stringified, empty if no body
}

// ResponseSpec is the normalized shape extraction and result classification
// work against: {status, headers, body}.
type ResponseSpec struct {
	Status  int
	Headers map[string]string
	Body    any
	Warning string
}

// restyDispatcher is the production Requester, grounded on the teacher's
// plugins/http/plugin.go resty client wiring.
type restyDispatcher struct {
	client *resty.Client
}

// NewRestyRequester builds a Requester backed by go-resty.
func NewRestyRequester() Requester {
	return &restyDispatcher{client: resty.New()}
}

func (d *restyDispatcher) Do(ctx context.Context, req RequestSpec) (ResponseSpec, error) {
	r := d.client.R().SetContext(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if req.Body != "" {
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = "GET"
	}

	resp, err := r.Execute(strings.ToUpper(method), req.URL)
	if err != nil {
		return ResponseSpec{}, err
	}

	headers := make(map[string]string, len(resp.Header()))
	for k, vs := range resp.Header() {
		if len(vs) > 0 {
			headers[strings.ToLower(k)] = vs[0]
		}
	}

	contentType := resp.Header().Get("Content-Type")
	var body any
	warning := ""
	raw := resp.Body()
	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
			warning = "response declared application/json but could not be parsed; returning as text"
		}
	} else {
		body = string(raw)
	}

	return ResponseSpec{
		Status:  resp.StatusCode(),
		Headers: headers,
		Body:    body,
		Warning: warning,
	}, nil
}
