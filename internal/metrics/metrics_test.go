package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{101, "1xx"},
		{200, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := StatusClass(tt.code); got != tt.want {
				t.Errorf("StatusClass(%d) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestCollectorsRegistered(t *testing.T) {
	before := testutil.ToFloat64(MessagesTotal.WithLabelValues(ClientToUpstream))
	MessagesTotal.WithLabelValues(ClientToUpstream).Inc()
	after := testutil.ToFloat64(MessagesTotal.WithLabelValues(ClientToUpstream))

	if after-before != 1 {
		t.Errorf("Expected counter to grow by 1, got %v", after-before)
	}
}
