package providers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// statusError reports a non-2xx response. The provider's error message is
// preferred over the raw body when the body is a JSON error object.
func statusError(resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("model: empty http response")
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	body := strings.TrimSpace(string(raw))
	for _, path := range []string{"error.message", "message", "error"} {
		if v := gjson.Get(body, path); v.Type == gjson.String && v.String() != "" {
			return fmt.Errorf("model: http status %d: %s", resp.StatusCode, v.String())
		}
	}
	if body == "" {
		return fmt.Errorf("model: http status %d", resp.StatusCode)
	}
	return fmt.Errorf("model: http status %d body=%s", resp.StatusCode, body)
}
