package evidence_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/evidence"
)

type fakeEDR struct {
	processes       []entity.HostProcess
	connections     []entity.HostConnection
	failProcesses   bool
	failConnections bool
}

func (f *fakeEDR) ListProcesses(_ context.Context, _ string) ([]entity.HostProcess, error) {
	if f.failProcesses {
		return nil, fmt.Errorf("edr timeout")
	}
	return f.processes, nil
}

func (f *fakeEDR) ListConnections(_ context.Context, _ string) ([]entity.HostConnection, error) {
	if f.failConnections {
		return nil, fmt.Errorf("edr timeout")
	}
	return f.connections, nil
}

func (f *fakeEDR) IsolateHost(_ context.Context, _ string) error    { return nil }
func (f *fakeEDR) KillProcess(_ context.Context, _, _ string) error { return nil }

type fakeStorer struct {
	bundles []*entity.EvidenceBundle
	fail    bool
}

func (f *fakeStorer) PutEvidenceBundle(_ context.Context, bundle *entity.EvidenceBundle) (string, error) {
	if f.fail {
		return "", fmt.Errorf("bucket unavailable")
	}
	f.bundles = append(f.bundles, bundle)
	return "s3://evidence/inc-1.json", nil
}

func testIncident() *entity.Incident {
	return &entity.Incident{ID: "inc-1", Asset: "ws-042"}
}

func TestCaptureBundlesHostState(t *testing.T) {
	edr := &fakeEDR{
		processes:   []entity.HostProcess{{PID: 4242, Name: "cryptor.exe", SHA256: "deadbeef"}},
		connections: []entity.HostConnection{{RemoteAddr: "203.0.113.7:443", State: "ESTABLISHED"}},
	}
	storer := &fakeStorer{}
	c := evidence.NewCollector(edr, storer)

	item, err := c.Capture(context.Background(), testIncident())
	require.NoError(t, err)
	assert.Equal(t, "ws-042", item.Asset)
	assert.Equal(t, "s3://evidence/inc-1.json", item.StorageURL)
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.CapturedAt.IsZero())

	require.Len(t, storer.bundles, 1)
	bundle := storer.bundles[0]
	assert.Equal(t, "inc-1", bundle.IncidentID)
	assert.Len(t, bundle.Processes, 1)
	assert.Len(t, bundle.Connections, 1)
}

func TestCaptureProcessSnapshotFailureIsFatal(t *testing.T) {
	c := evidence.NewCollector(&fakeEDR{failProcesses: true}, &fakeStorer{})
	_, err := c.Capture(context.Background(), testIncident())
	assert.Error(t, err)
}

func TestCaptureConnectionFailureDegrades(t *testing.T) {
	edr := &fakeEDR{
		processes:       []entity.HostProcess{{PID: 1, Name: "init"}},
		failConnections: true,
	}
	storer := &fakeStorer{}
	c := evidence.NewCollector(edr, storer)

	item, err := c.Capture(context.Background(), testIncident())
	require.NoError(t, err)
	assert.NotNil(t, item)

	require.Len(t, storer.bundles, 1)
	assert.Len(t, storer.bundles[0].Processes, 1)
	assert.Empty(t, storer.bundles[0].Connections)
}

func TestCaptureStoreFailure(t *testing.T) {
	c := evidence.NewCollector(&fakeEDR{}, &fakeStorer{fail: true})
	_, err := c.Capture(context.Background(), testIncident())
	assert.Error(t, err)
}

func TestCaptureUnconfigured(t *testing.T) {
	c := evidence.NewCollector(nil, nil)
	_, err := c.Capture(context.Background(), testIncident())
	assert.Error(t, err)
}
