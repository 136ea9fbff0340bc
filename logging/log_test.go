package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "01HZX")
	assert.Equal(t, "01HZX", RequestID(ctx))
	assert.Equal(t, "unknown", RequestID(context.Background()))
}

func TestErrorWithTraceIDReusesRequestID(t *testing.T) {
	assert.Equal(t, "req-1", ErrorWithTraceID(Fields{"request_id": "req-1"}, "boom"))

	id := ErrorWithTraceID(nil, "boom")
	assert.Len(t, id, 36)
}

func TestFromContext(t *testing.T) {
	entry := FromContext(WithRequestID(context.Background(), "abc"))
	assert.Equal(t, "abc", entry.Data["request_id"])
}
