package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Identity headers read by the API when no JWT secret is configured
const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

// IdentityHeaders authenticates a request as TestUserID of TestTenantID
func IdentityHeaders() map[string]string {
	return map[string]string{
		TenantHeader: TestTenantID().String(),
		UserHeader:   TestUserID().String(),
	}
}

// Recorded is the answer to one request served by Serve
type Recorded struct {
	*httptest.ResponseRecorder
}

// HTTPTestCase represents a request against a full handler chain and what it must answer.
type HTTPTestCase struct {
	Name           string
	Method         string
	Path           string
	Body           any
	Headers        map[string]string
	ExpectedStatus int
	// ExpectedCode is the envelope error code; empty means the call must succeed.
	ExpectedCode string
	Validate     func(t *testing.T, res *Recorded)
}

// RunHTTPTestCases runs a slice of HTTP test cases against a handler.
func RunHTTPTestCases(t *testing.T, handler http.Handler, cases []HTTPTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, handler, tc)
		})
	}
}

// RunHTTPTestCase runs a single HTTP test case.
func RunHTTPTestCase(t *testing.T, handler http.Handler, tc HTTPTestCase) {
	t.Helper()

	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}
	path := tc.Path
	if path == "" {
		path = "/"
	}
	result := Serve(t, handler, method, path, tc.Body, tc.Headers)

	if tc.ExpectedStatus != 0 {
		assert.Equal(t, tc.ExpectedStatus, result.Code, "Unexpected status code: %s", result.Body.String())
	}
	if tc.ExpectedCode != "" {
		AssertErrorResponse(t, result, tc.ExpectedCode)
	}
	if tc.Validate != nil {
		tc.Validate(t, result)
	}
}

// Serve sends one request through handler and records the answer.
// A non-nil body is JSON encoded unless it already is an io.Reader.
func Serve(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *Recorded {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		reader = ToJSONReader(t, b)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return &Recorded{w}
}

// JSONResponse parses the response body as JSON.
func JSONResponse(t *testing.T, res *Recorded) map[string]any {
	t.Helper()

	var result map[string]any
	err := json.Unmarshal(res.Body.Bytes(), &result)
	require.NoError(t, err, "Failed to parse JSON response")
	return result
}

// JSONResponseAs parses the response body into the provided struct.
func JSONResponseAs[T any](t *testing.T, res *Recorded) T {
	t.Helper()

	var result T
	err := json.Unmarshal(res.Body.Bytes(), &result)
	require.NoError(t, err, "Failed to parse JSON response")
	return result
}

// DataAs decodes the envelope's data member into T.
func DataAs[T any](t *testing.T, res *Recorded) T {
	t.Helper()

	envelope := JSONResponseAs[struct {
		Data json.RawMessage `json:"data"`
	}](t, res)
	var result T
	require.NoError(t, json.Unmarshal(envelope.Data, &result), "Failed to parse response data: %s", envelope.Data)
	return result
}

// AssertSuccessResponse asserts the response is a successful envelope.
func AssertSuccessResponse(t *testing.T, res *Recorded) {
	t.Helper()

	resp := JSONResponse(t, res)
	assert.Equal(t, true, resp["success"], "Expected success to be true: %v", resp)
	assert.Nil(t, resp["code"], "Expected no error code")
}

// AssertErrorResponse asserts the response is a failed envelope carrying expectedCode.
func AssertErrorResponse(t *testing.T, res *Recorded, expectedCode string) {
	t.Helper()

	resp := JSONResponse(t, res)
	assert.Equal(t, false, resp["success"], "Expected success to be false")
	assert.Equal(t, expectedCode, resp["code"], "Unexpected error code: %v", resp)
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
