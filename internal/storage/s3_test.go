//go:build integration

package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/cloo-solutions/agentrag/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "agentrag-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	body := "Bedrock is a managed service."
	require.NoError(t, client.Put(ctx, "doc1.txt", strings.NewReader(body), int64(len(body))))

	docs, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc1.txt", docs[0].Name)
	assert.Equal(t, int64(len(body)), docs[0].Size)
	assert.NotEmpty(t, docs[0].ETag)

	r, err := client.Get(ctx, "doc1.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	require.NoError(t, client.Delete(ctx, "doc1.txt"))
	assert.ErrorIs(t, client.Delete(ctx, "doc1.txt"), domain.ErrDocumentNotFound)

	_, err = client.Get(ctx, "doc1.txt")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
