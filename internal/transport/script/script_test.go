package script

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cakery-bench/internal/transport"
)

const echoScript = `#!/bin/sh
echo "skip=$skip mode=$MODE arg=$1"
echo "OperationTime: 42"
echo "OperationTime: 7"
`

func writeScript(t *testing.T, name, body string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
	return dir
}

func TestInvokeParsesOperationTime(t *testing.T) {
	dir := writeScript(t, DefaultName, echoScript)
	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.EnvVars = "MODE=fast;;"

	tr, err := New(cfg)
	require.NoError(t, err)
	defer tr.Close()

	m, ok, err := tr.Invoke(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, transport.Measurement{Name: MeasurementName, Value: 42}, m)

	last := tr.Last()
	assert.Contains(t, last.Output, "mode=fast arg=command")
	assert.Contains(t, last.Output, "skip="+strconv.Itoa(last.Skip))
}

func TestSkipStaysInQuerySet(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns many processes")
	}
	dir := writeScript(t, "q.sh", echoScript)
	tr, err := New(Config{Dir: dir, Name: "q.sh", QuerySetSize: 500, Seed: 7})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_, ok, err := tr.Invoke(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		skip := tr.Last().Skip
		require.GreaterOrEqual(t, skip, 0)
		require.Less(t, skip, 500)
		require.True(t, strings.HasPrefix(tr.Last().Output, "skip="+strconv.Itoa(skip)+" "))
	}
}

func TestNonZeroExitIsNotAnError(t *testing.T) {
	dir := writeScript(t, "fail.sh", "#!/bin/sh\necho 'OperationTime: 5'\nexit 3\n")
	tr, err := New(Config{Dir: dir, Name: "fail.sh", QuerySetSize: 10})
	require.NoError(t, err)

	m, ok, err := tr.Invoke(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), m.Value)
	assert.Equal(t, 3, tr.Last().ExitCode)
}

func TestNoMeasurement(t *testing.T) {
	dir := writeScript(t, "quiet.sh", "#!/bin/sh\necho nothing here\n")
	tr, err := New(Config{Dir: dir, Name: "quiet.sh", QuerySetSize: 10})
	require.NoError(t, err)

	_, ok, err := tr.Invoke(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMissingExecutableIsFatal(t *testing.T) {
	tr, err := New(Config{Dir: t.TempDir(), Name: "absent.sh", QuerySetSize: 10})
	require.NoError(t, err)

	_, _, err = tr.Invoke(context.Background())
	require.Error(t, err)
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
}

func TestPutNotSupported(t *testing.T) {
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	err = tr.Put(context.Background(), "person1", nil)
	assert.ErrorIs(t, err, transport.ErrNotSupported)
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
	assert.False(t, tr.Kind().Loadable())
}

func TestNewRejectsEmptyQuerySet(t *testing.T) {
	_, err := New(Config{Name: "x.sh"})
	assert.Equal(t, transport.Fatal, transport.KindOf(err))
}

func TestSplitEnv(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, SplitEnv("A=1; ;B=2;"))
	assert.Empty(t, SplitEnv(""))
}

func TestParseOperationTime(t *testing.T) {
	m, ok := ParseOperationTime("warmup\nOperationTime: 1234\n")
	assert.True(t, ok)
	assert.Equal(t, int64(1234), m.Value)

	_, ok = ParseOperationTime("OperationTime: n/a")
	assert.False(t, ok)
}
