package line

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/leafcheck/internal/pipeline"
)

const sampleCallback = `{
	"destination": "U0123",
	"events": [
		{"type": "message", "replyToken": "r1", "timestamp": 1, "message": {"id": "100", "type": "text", "text": "hi"}},
		{"type": "message", "replyToken": "r2", "timestamp": 2, "message": {"id": "200", "type": "image"}},
		{"type": "follow", "replyToken": "r3", "timestamp": 3}
	]
}`

func TestParseCallback(t *testing.T) {
	t.Parallel()

	cb, err := ParseCallback([]byte(sampleCallback))
	require.NoError(t, err)
	assert.Equal(t, "U0123", cb.Destination)

	assert.Equal(t, []pipeline.InboundEvent{
		{Type: "message", MessageType: "text", MediaID: "100", ReplyToken: "r1"},
		{Type: "message", MessageType: "image", MediaID: "200", ReplyToken: "r2"},
		{Type: "follow", ReplyToken: "r3"},
	}, cb.InboundEvents())

	_, err = ParseCallback([]byte(`{"events":`))
	assert.Error(t, err)
}

func TestValidateSignature(t *testing.T) {
	t.Parallel()

	body := []byte(sampleCallback)
	sig := Sign("secret", body)

	assert.True(t, ValidateSignature("secret", sig, body))
	assert.False(t, ValidateSignature("other", sig, body))
	assert.False(t, ValidateSignature("secret", sig, append(body, ' ')))
	assert.False(t, ValidateSignature("secret", "%%%not-base64", body))
}

func TestSignatureMiddleware(t *testing.T) {
	t.Parallel()

	body := sampleCallback
	cases := []struct {
		name      string
		signature string
		wantCode  int
	}{
		{name: "valid", signature: Sign("secret", []byte(body)), wantCode: http.StatusOK},
		{name: "missing", signature: "", wantCode: http.StatusUnauthorized},
		{name: "wrong", signature: Sign("nope", []byte(body)), wantCode: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var seen string
			next := func(c echo.Context) error {
				raw, err := io.ReadAll(c.Request().Body)
				if err != nil {
					return err
				}
				seen = string(raw)
				return c.NoContent(http.StatusOK)
			}

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
			if tc.signature != "" {
				req.Header.Set(SignatureHeader, tc.signature)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := SignatureMiddleware("secret")(next)(c)
			if tc.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, body, seen)
				return
			}
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tc.wantCode, he.Code)
			assert.Empty(t, seen)
		})
	}
}
