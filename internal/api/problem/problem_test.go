package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	cases := []struct {
		name       string
		result     string
		wantResult string
	}{
		{name: "defaults to not handled", result: "", wantResult: "not_handled"},
		{name: "keeps handler result", result: "failed", wantResult: "failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/economy/add", nil)
			w := httptest.NewRecorder()
			w.Header().Set(TraceHeader, "trace-1")
			if tc.result != "" {
				w.Header().Set(ResultHeader, tc.result)
			}

			Write(w, r, http.StatusUnprocessableEntity, Type("economy/operation-failed"), "", "nope")

			require.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, contentType, w.Header().Get("Content-Type"))
			assert.Equal(t, tc.wantResult, w.Header().Get(ResultHeader))

			var d Details
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
			assert.Equal(t, baseTypeURL+"economy/operation-failed", d.Type)
			assert.Equal(t, http.StatusText(http.StatusUnprocessableEntity), d.Title)
			assert.Equal(t, "/v1/economy/add", d.Instance)
			assert.Equal(t, "trace-1", d.RequestID)
			assert.Equal(t, tc.wantResult, d.Result)
		})
	}
}
