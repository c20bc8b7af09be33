package driver_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"solang/cfg"
	"solang/driver"
	"solang/target"
)

func write(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const hitcount = `
contract hitcount {
	uint counter = 1;
	function hit() public { counter = counter + 1; }
	function count() public view returns (uint) { return counter; }
}
`

func TestCompileWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	source := write(t, dir, "hitcount.sol", hitcount)

	result, err := driver.Compile([]string{source}, driver.Options{
		Target:    target.Ethereum{},
		Passes:    cfg.DefaultPasses(),
		OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Namespace.Diagnostics.HasErrors() {
		for _, diagnostic := range result.Namespace.Diagnostics.All() {
			t.Log(result.FileSet.Render(diagnostic))
		}
		t.Fatal("compilation failed")
	}
	if len(result.Written) != 2 {
		t.Fatalf("written = %v, want wasm and metadata", result.Written)
	}

	binary, err := os.ReadFile(filepath.Join(dir, "hitcount.wasm"))
	if err != nil {
		t.Fatal(err)
	}
	if len(binary) < 8 || binary[0] != 0 || binary[1] != 'a' {
		t.Errorf("not a wasm binary: %x", binary[:8])
	}

	blob, err := os.ReadFile(filepath.Join(dir, "hitcount.json"))
	if err != nil {
		t.Fatal(err)
	}
	var metadata struct {
		Name     string `json:"name"`
		Messages []struct {
			Name     string `json:"name"`
			Selector string `json:"selector"`
			Mutates  bool   `json:"mutates"`
		} `json:"messages"`
		Storage []struct {
			Name string `json:"name"`
			Slot uint64 `json:"slot"`
		} `json:"storage"`
	}
	if err := json.Unmarshal(blob, &metadata); err != nil {
		t.Fatal(err)
	}
	if metadata.Name != "hitcount" || len(metadata.Messages) != 2 {
		t.Errorf("metadata = %+v", metadata)
	}
	for _, message := range metadata.Messages {
		if message.Name == "count" && message.Mutates {
			t.Error("count() is a view; it must not mutate")
		}
		if len(message.Selector) != 10 { // 0x + 8 hex digits
			t.Errorf("selector = %q", message.Selector)
		}
	}
	if len(metadata.Storage) != 1 || metadata.Storage[0].Slot != 0 {
		t.Errorf("storage layout = %+v", metadata.Storage)
	}
}

func TestSubstrateContractEnvelope(t *testing.T) {
	dir := t.TempDir()
	source := write(t, dir, "hitcount.sol", hitcount)

	result, err := driver.Compile([]string{source}, driver.Options{
		Target:    target.Substrate{},
		Passes:    cfg.DefaultPasses(),
		OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Namespace.Diagnostics.HasErrors() {
		t.Fatal("compilation failed")
	}
	blob, err := os.ReadFile(filepath.Join(dir, "hitcount.contract"))
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Source struct {
			Wasm string `json:"wasm"`
			Hash string `json:"hash"`
		} `json:"source"`
		Contract struct {
			Name string `json:"name"`
		} `json:"contract"`
	}
	if err := json.Unmarshal(blob, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Contract.Name != "hitcount" || envelope.Source.Wasm == "" || len(envelope.Source.Hash) != 64 {
		t.Errorf("envelope = %+v", envelope)
	}
}

func TestSelectorsDifferAcrossTargets(t *testing.T) {
	ethereum := driver.CompileSource("a.sol", hitcount, driver.Options{Target: target.Ethereum{}})
	substrate := driver.CompileSource("a.sol", hitcount, driver.Options{Target: target.Substrate{}})
	ethHit := ethereum.Namespace.Functions[0].Selector
	subHit := substrate.Namespace.Functions[0].Selector
	if ethHit == subHit {
		t.Error("selector schemes must differ between targets")
	}
}

func TestImportsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "base.sol", `
		contract base {
			uint stored;
			function set(uint v) public { stored = v; }
		}
	`)
	main := write(t, dir, "main.sol", `
		import "base.sol";
		contract derived is base {
			function bump() public { set(1); }
		}
	`)
	result, err := driver.Compile([]string{main}, driver.Options{
		Target: target.Ethereum{}, Passes: cfg.NoPasses(), OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Namespace.Diagnostics.HasErrors() {
		for _, diagnostic := range result.Namespace.Diagnostics.All() {
			t.Log(result.FileSet.Render(diagnostic))
		}
		t.Fatal("cross-file inheritance failed")
	}
	if len(result.Namespace.Files) != 2 {
		t.Errorf("files = %d, want 2", len(result.Namespace.Files))
	}
}

func TestChecksumDiagnosticSuggestsSpelling(t *testing.T) {
	checksummed := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	source := `
		contract c {
			function f() public returns (address) {
				return ` + strings.ToLower(checksummed) + `;
			}
		}
	`
	result := driver.CompileSource("a.sol", source, driver.Options{})
	if !result.Namespace.Diagnostics.HasErrors() {
		t.Fatal("mis-cased address literal accepted")
	}
	found := false
	for _, diagnostic := range result.Namespace.Diagnostics.All() {
		if strings.Contains(diagnostic.Message, checksummed) {
			found = true
		}
	}
	if !found {
		t.Error("diagnostic does not suggest the corrected spelling")
	}
}

func TestDeterministicBackendIR(t *testing.T) {
	dir := t.TempDir()
	source := write(t, dir, "hitcount.sol", hitcount)
	options := driver.Options{Target: target.Ethereum{}, Passes: cfg.DefaultPasses(), Emit: driver.EmitIR}

	first, err := driver.Compile([]string{source}, options)
	if err != nil {
		t.Fatal(err)
	}
	second, err := driver.Compile([]string{source}, options)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Dumps) == 0 || len(first.Dumps) != len(second.Dumps) {
		t.Fatalf("dumps = %d vs %d", len(first.Dumps), len(second.Dumps))
	}
	for i := range first.Dumps {
		if first.Dumps[i] != second.Dumps[i] {
			t.Error("the same input must produce byte-identical backend IR")
		}
	}
}
