package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "readstats.db"), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()

	client, err := NewClient(filepath.Join(tmpDir, "readstats.db"), Config{Workers: 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "readstats-tasks.db"), client.Path())
	_, err = os.Stat(client.Path())
	assert.NoError(t, err, "tasks database should be created")

	assert.NoError(t, client.Close())
}

func TestNewClient_DatabasePathOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "queue.sqlite")

	client := newTestClient(t, Config{Workers: 1, DatabasePath: override})

	assert.Equal(t, override, client.Path())
}

func TestClientStartStop(t *testing.T) {
	client := newTestClient(t, Config{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

func TestClientStop_NotStarted(t *testing.T) {
	client := newTestClient(t, Config{Workers: 1})

	assert.True(t, client.Stop(context.Background()))
}

type echoTask struct {
	Value string `json:"value"`
}

func (t echoTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "echo",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestEnqueue(t *testing.T) {
	client := newTestClient(t, Config{Workers: 1})

	executed := make(chan string, 1)
	client.Register(backlite.NewQueue(func(ctx context.Context, task echoTask) error {
		executed <- task.Value
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	id, err := client.Enqueue(echoTask{Value: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case val := <-executed:
		assert.Equal(t, "hello", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

func TestStatus_UnknownTask(t *testing.T) {
	client := newTestClient(t, Config{Workers: 1})

	status, err := client.Status(context.Background(), "missing")

	require.NoError(t, err)
	assert.Equal(t, backlite.TaskStatusNotFound, status)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Empty(t, cfg.DatabasePath)
}
