package internal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type driverFixture struct {
	driver   *Driver
	executor *fakeExecutor
	config   *Config
	workDir  string
	output   *bytes.Buffer
}

func newDriverFixture(t *testing.T) *driverFixture {
	t.Helper()
	config := DefaultConfig()
	config.WorkDir = t.TempDir()
	executor := newFakeExecutor()
	output := &bytes.Buffer{}
	return &driverFixture{
		driver:   NewDriver(config, executor, NewReporter(output, true, true)),
		executor: executor,
		config:   config,
		workDir:  config.WorkDir,
		output:   output,
	}
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.c")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCompile_Success(t *testing.T) {
	f := newDriverFixture(t)
	source := writeSource(t, "\n  int main() { return 2; }  \n")
	exePath := filepath.Join(t.TempDir(), "prog")

	outcome := f.driver.Compile(context.Background(), source, exePath)
	require.NoError(t, outcome.Err)
	assert.Equal(t, Success, outcome.Kind)
	assert.Equal(t, exePath, outcome.ExecutablePath)
	assert.Equal(t, 0, outcome.ExitCode())
	assert.FileExists(t, exePath)

	// The assembler saw the complete listing with the exit(2) sequence.
	assert.Equal(t, expectedListing, f.executor.assembled)
	assert.Contains(t, f.executor.assembled, "mov rdi, 2")
	assert.Empty(t, dirEntries(t, f.workDir), "work directory must be removed")
}

func TestCompile_RejectedInputWritesNothing(t *testing.T) {
	f := newDriverFixture(t)
	source := writeSource(t, "int main() { return 0; }")
	outDir := t.TempDir()
	exePath := filepath.Join(outDir, "prog")

	outcome := f.driver.Compile(context.Background(), source, exePath)
	assert.Equal(t, RejectedInput, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrRejected)
	assert.Equal(t, 1, outcome.ExitCode())
	assert.Empty(t, f.executor.calls)
	assert.Empty(t, dirEntries(t, f.workDir))
	assert.Empty(t, dirEntries(t, outDir))
}

func TestCompile_InputReadFailure(t *testing.T) {
	f := newDriverFixture(t)
	outcome := f.driver.Compile(context.Background(), filepath.Join(t.TempDir(), "absent.c"), "prog")
	assert.Equal(t, InputReadFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrInputRead)
	assert.ErrorIs(t, outcome.Err, os.ErrNotExist)
	assert.Empty(t, f.executor.calls)
}

func TestCompile_AssemblerFailure(t *testing.T) {
	f := newDriverFixture(t)
	f.executor.exitCodes["nasm"] = 1
	f.executor.stderr["nasm"] = "nasm: fatal: unable to open input file"
	exePath := filepath.Join(t.TempDir(), "prog")

	outcome := f.driver.Compile(context.Background(), writeSource(t, AcceptedProgram), exePath)
	assert.Equal(t, ToolchainFailure, outcome.Kind)
	assert.Equal(t, Assembling, outcome.Stage)
	assert.ErrorIs(t, outcome.Err, ErrAssemblerFailed)
	assert.False(t, f.executor.called("ld"))
	assert.NoFileExists(t, exePath)
	assert.Empty(t, dirEntries(t, f.workDir))

	f.driver.ReportOutcome("main.c", outcome)
	assert.Contains(t, f.output.String(), "[error while assembling]: assembler failed (nasm exited with status 1)\n"+
		"    nasm: fatal: unable to open input file\n")
}

func TestCompile_LinkerFailure(t *testing.T) {
	f := newDriverFixture(t)
	f.executor.exitCodes["ld"] = 1
	f.config.KeepIntermediates = true

	outcome := f.driver.Compile(context.Background(), writeSource(t, AcceptedProgram), filepath.Join(t.TempDir(), "prog"))
	assert.Equal(t, ToolchainFailure, outcome.Kind)
	assert.Equal(t, Linking, outcome.Stage)
	assert.ErrorIs(t, outcome.Err, ErrLinkerFailed)

	// Even with --keep the object is removed; the listing stays for diagnosis.
	entries := dirEntries(t, f.workDir)
	require.Len(t, entries, 1)
	runDir := filepath.Join(f.workDir, entries[0])
	assert.Equal(t, []string{AssemblyFileName}, dirEntries(t, runDir))
}

func TestCompile_KeepIntermediates(t *testing.T) {
	f := newDriverFixture(t)
	f.config.KeepIntermediates = true

	outcome := f.driver.Compile(context.Background(), writeSource(t, AcceptedProgram), filepath.Join(t.TempDir(), "prog"))
	require.Equal(t, Success, outcome.Kind)
	entries := dirEntries(t, f.workDir)
	require.Len(t, entries, 1)
	assert.Contains(t, f.output.String(), "intermediates kept in")
}

func TestCompile_EmitAsmOnly(t *testing.T) {
	f := newDriverFixture(t)
	f.config.EmitAsmOnly = true
	asmPath := filepath.Join(t.TempDir(), "out.asm")

	outcome := f.driver.Compile(context.Background(), writeSource(t, AcceptedProgram), asmPath)
	require.Equal(t, Success, outcome.Kind)
	assert.Equal(t, asmPath, outcome.AssemblyPath)
	assert.Empty(t, f.executor.calls)
	content, err := os.ReadFile(asmPath)
	require.NoError(t, err)
	assert.Equal(t, expectedListing, string(content))
}

func TestCompile_SubsetGrammar(t *testing.T) {
	f := newDriverFixture(t)
	f.config.Grammar = SubsetGrammar

	outcome := f.driver.Compile(context.Background(), writeSource(t, "int main() {\n  return 7;\n}\n"), filepath.Join(t.TempDir(), "prog"))
	require.Equal(t, Success, outcome.Kind)
	assert.Contains(t, f.executor.assembled, "mov rdi, 7")
}

func TestCompile_WorkDirUnavailable(t *testing.T) {
	f := newDriverFixture(t)
	f.config.WorkDir = filepath.Join(t.TempDir(), "absent")

	outcome := f.driver.Compile(context.Background(), writeSource(t, AcceptedProgram), "prog")
	assert.Equal(t, ToolchainFailure, outcome.Kind)
	assert.Equal(t, Idle, outcome.Stage)
	assert.Empty(t, f.executor.calls)
}

func TestCompile_Cancelled(t *testing.T) {
	f := newDriverFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := f.driver.Compile(ctx, writeSource(t, AcceptedProgram), filepath.Join(t.TempDir(), "prog"))
	assert.Equal(t, ToolchainFailure, outcome.Kind)
	assert.Equal(t, 130, outcome.ExitCode())
	assert.Empty(t, dirEntries(t, f.workDir))
}

func TestCompile_ConcurrentRunsDoNotCollide(t *testing.T) {
	f := newDriverFixture(t)
	outDir := t.TempDir()
	source := writeSource(t, AcceptedProgram)

	// Each run gets its own executor; the shared work dir parent is the point.
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		exePath := filepath.Join(outDir, "prog"+string(rune('a'+i)))
		go func() {
			d := NewDriver(f.config, newFakeExecutor(), newTestReporter())
			outcome := d.Compile(context.Background(), source, exePath)
			if outcome.Kind != Success {
				errs <- errors.Join(errors.New(outcome.Kind.String()), outcome.Err)
				return
			}
			errs <- nil
		}()
	}
	for i := 0; i < 4; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Len(t, dirEntries(t, outDir), 4)
}

func TestOutcome_ReportSuccess(t *testing.T) {
	f := newDriverFixture(t)
	f.driver.ReportOutcome("main.c", Outcome{Kind: Success, ExecutablePath: "a.out"})
	f.driver.ReportOutcome("main.c", Outcome{Kind: RejectedInput, Err: &RejectionError{Reason: ErrRejected.Error()}})
	assert.Equal(t, "[ok]: compiled main.c to a.out\n"+
		"[error while validating]: main.c: does not match accepted grammar\n", f.output.String())
}

// TestCompile_EndToEnd needs nasm and ld on an x86-64 Linux host.
func TestCompile_EndToEnd(t *testing.T) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("needs x86-64 linux")
	}
	for _, tool := range []string{"nasm", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not on PATH", tool)
		}
	}
	config := DefaultConfig()
	config.WorkDir = t.TempDir()
	driver := NewDriver(config, NewExecExecutor(), newTestReporter())
	exePath := filepath.Join(t.TempDir(), "prog")

	outcome := driver.Compile(context.Background(), writeSource(t, "  int main() { return 2; }\n"), exePath)
	require.Equal(t, Success, outcome.Kind, "%v", outcome.Err)

	err := exec.Command(exePath).Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())

	rejected := filepath.Join(t.TempDir(), "rejected")
	outcome = driver.Compile(context.Background(), writeSource(t, "int main() { return 0; }"), rejected)
	assert.Equal(t, RejectedInput, outcome.Kind)
	assert.NoFileExists(t, rejected)
}

func TestCompile_FinalizationFailureKeepsBinary(t *testing.T) {
	f := newDriverFixture(t)
	exePath := filepath.Join(t.TempDir(), "missing", "prog")

	outcome := f.driver.Compile(context.Background(), writeSource(t, AcceptedProgram), exePath)
	assert.Equal(t, ToolchainFailure, outcome.Kind)
	assert.Equal(t, Finalizing, outcome.Stage)
	assert.ErrorIs(t, outcome.Err, ErrFinalizationFailed)

	entries := dirEntries(t, f.workDir)
	require.Len(t, entries, 1)
	assert.FileExists(t, filepath.Join(f.workDir, entries[0], LinkedFileName))
	assert.Contains(t, f.output.String(), "linked executable left at")
}

type failingGenerator struct{}

func (failingGenerator) Generate(*ProgramAst) (string, error) {
	return "", ErrCodeGen
}

func (failingGenerator) Target() string { return "none" }

func TestCompile_GeneratorFailureWritesNothing(t *testing.T) {
	f := newDriverFixture(t)
	f.driver.newGenerator = func() CodeGenerator { return failingGenerator{} }
	outDir := t.TempDir()

	outcome := f.driver.Compile(context.Background(), writeSource(t, AcceptedProgram), filepath.Join(outDir, "prog"))
	assert.Equal(t, CodeGenFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrCodeGen)
	assert.Contains(t, f.output.String(), "target none")
	assert.Empty(t, f.executor.calls)
	assert.Empty(t, dirEntries(t, f.workDir))
	assert.Empty(t, dirEntries(t, outDir))
}
