package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/repository"
	"github.com/marmos91/bankd/pkg/store/journal"
)

// memS3 is an in-memory bucket.
type memS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPuts int
}

type codedError string

func (e codedError) Error() string     { return string(e) }
func (e codedError) ErrorCode() string { return string(e) }

func newMemS3() *memS3 { return &memS3{objects: map[string][]byte{}} }

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPuts > 0 {
		m.failPuts--
		return nil, codedError("RequestTimeout")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, codedError("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func seededStore(t *testing.T) *repository.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.Open(dir, nil)
	require.NoError(t, err)

	j := journal.New(journal.NewNullPersister(), store.RawTables()...)
	svc := banking.New(store, j, banking.WithBcryptCost(bcrypt.MinCost))
	_, err = svc.Seed(context.Background())
	require.NoError(t, err)
	return store
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Validate())

	cfg = Config{Bucket: "b", AccessKeyID: "id"}
	assert.Error(t, cfg.Validate())

	cfg = Config{Bucket: "b"}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "bankd/", cfg.Prefix)
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestBackupAndRestore(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	client := newMemS3()

	svc, err := New(client, Config{Bucket: "bank", InitialBackoff: time.Millisecond})
	require.NoError(t, err)

	m, err := svc.Backup(ctx, store.Tables())
	require.NoError(t, err)
	require.Len(t, m.Tables, len(store.Tables()))

	byName := map[string]TableObject{}
	for _, obj := range m.Tables {
		byName[obj.Name] = obj
		assert.True(t, strings.HasPrefix(obj.Key, "bankd/"+m.ID+"/"))
	}
	assert.EqualValues(t, 4, byName["users"].Records)
	assert.EqualValues(t, 2, byName["accounts"].Records)
	assert.Contains(t, client.objects, "bankd/"+m.ID+"/"+ManifestFile)

	ids, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, ids)

	target := filepath.Join(t.TempDir(), "restored")
	_, err = svc.Restore(ctx, m.ID, target)
	require.NoError(t, err)

	restored, err := repository.Open(target, nil)
	require.NoError(t, err)
	u, err := restored.Users.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Vikram", u.FirstName)

	for _, tbl := range store.Tables() {
		want, err := os.ReadFile(tbl.Path())
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(target, filepath.Base(tbl.Path())))
		require.NoError(t, err)
		assert.Equal(t, want, got, tbl.Name())
	}
}

func TestRestoreRefusesExistingTables(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	svc, err := New(newMemS3(), Config{Bucket: "bank"})
	require.NoError(t, err)
	m, err := svc.Backup(ctx, store.Tables())
	require.NoError(t, err)

	_, err = svc.Restore(ctx, m.ID, store.Dir())
	assert.ErrorIs(t, err, ErrNotEmpty)
}

func TestBackupRetriesTransientErrors(t *testing.T) {
	client := newMemS3()
	client.failPuts = 2

	svc, err := New(client, Config{Bucket: "bank", InitialBackoff: time.Millisecond})
	require.NoError(t, err)

	_, err = svc.Backup(context.Background(), seededStore(t).Tables())
	require.NoError(t, err)
}

func TestListIgnoresIncompleteBackups(t *testing.T) {
	client := newMemS3()
	client.objects["bankd/partial/users.dat"] = []byte("x")

	svc, err := New(client, Config{Bucket: "bank"})
	require.NoError(t, err)

	ids, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
