package miniostore

import (
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(logrus.New(), Config{})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	store, err := New(logrus.New(), Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Insecure:  true,
	})
	require.NoError(t, err)
	assert.NotNil(t, store.client)
}

// Delimiters other than "/" are grouped client-side; groupKey must mirror
// S3's CommonPrefixes rollup.
func TestGroupKey(t *testing.T) {
	cases := []struct {
		key, prefix, delimiter, want string
	}{
		{"logs-2020-a", "", "-", "logs-"},
		{"logs-2020-a", "logs-", "-", "logs-2020-"},
		{"readme", "", "-", "readme"},
		{"a/x/y", "", "/", "a/"},
		{"a/x/y", "a/", "/", "a/x/"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, groupKey(c.key, c.prefix, c.delimiter), c.key)
	}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestClassifyNotFound(t *testing.T) {
	keyErr := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	assert.True(t, funnel.IsNotFound(classify(keyErr)))

	bucketErr := minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}
	assert.True(t, funnel.IsNotFound(classify(bucketErr)))
}

func TestClassifyTransient(t *testing.T) {
	serverErr := minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}
	assert.True(t, funnel.IsTransient(classify(serverErr)))

	throttleErr := minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusTooManyRequests}
	assert.True(t, funnel.IsTransient(classify(throttleErr)))

	// Network-level failures never reach the service.
	assert.True(t, funnel.IsTransient(classify(errors.New("connection refused"))))
}

func TestClassifyLogicalPassThrough(t *testing.T) {
	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	classified := classify(denied)
	assert.False(t, funnel.IsTransient(classified))
	assert.False(t, funnel.IsNotFound(classified))
	assert.Error(t, classified)
}
