// Package emit assembles the final per-contract artifacts: the
// WebAssembly binary and the metadata blob describing constructors,
// messages, events, storage layout and the type table. The
// Ethereum-style target gets plain JSON; the substrate-style target
// gets the combined .contract envelope that carries the wasm inline.
package emit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"solang/sema"
	"solang/target"
)

// Param describes one ABI parameter in the metadata.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Message describes a callable entry point.
type Message struct {
	Name     string  `json:"name"`
	Selector string  `json:"selector"`
	Inputs   []Param `json:"inputs"`
	Outputs  []Param `json:"outputs"`
	Mutates  bool    `json:"mutates"`
	Payable  bool    `json:"payable"`
}

// Event describes one event and its indexed fields.
type Event struct {
	Name    string  `json:"name"`
	Fields  []Param `json:"fields"`
	Indexed []bool  `json:"indexed"`
}

// StorageEntry describes one laid-out storage variable.
type StorageEntry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Slot   uint64 `json:"slot"`
	Offset int    `json:"offset"`
}

// Metadata is the machine-readable contract description.
type Metadata struct {
	Name         string         `json:"name"`
	Target       string         `json:"target"`
	Constructors []Message      `json:"constructors"`
	Messages     []Message      `json:"messages"`
	Events       []Event        `json:"events"`
	Storage      []StorageEntry `json:"storage"`
	Types        []string       `json:"types"`
}

// envelope is the combined artifact of the substrate-style target.
type envelope struct {
	Source struct {
		Wasm string `json:"wasm"`
		Hash string `json:"hash"`
	} `json:"source"`
	Contract Metadata `json:"contract"`
}

// Describe builds the metadata for one contract.
func Describe(ns *sema.Namespace, contract *sema.ContractDecl, tgt target.Target) Metadata {
	metadata := Metadata{
		Name:   contract.Name,
		Target: tgt.Name(),
	}

	typeSet := make(map[string]bool)
	addType := func(ty sema.Type) string {
		name := ns.CanonicalName(ty)
		if !typeSet[name] {
			typeSet[name] = true
			metadata.Types = append(metadata.Types, name)
		}
		return name
	}
	params := func(list []sema.Parameter) []Param {
		out := make([]Param, len(list))
		for i, parameter := range list {
			out[i] = Param{Name: parameter.Name, Type: addType(parameter.Type)}
		}
		return out
	}

	seen := make(map[string]bool)
	for _, linear := range contract.Linear {
		for _, functionID := range ns.Contracts[linear].Functions {
			function := ns.Functions[functionID]
			if seen[function.Signature] {
				continue
			}
			seen[function.Signature] = true
			switch function.Kind {
			case sema.FuncConstructor:
				metadata.Constructors = append(metadata.Constructors, Message{
					Name:    "constructor",
					Inputs:  params(function.Parameters),
					Payable: function.Mutability == sema.Payable,
				})
			case sema.FuncPlain:
				if function.Visibility != sema.Public && function.Visibility != sema.External {
					continue
				}
				metadata.Messages = append(metadata.Messages, Message{
					Name:     function.Name,
					Selector: fmt.Sprintf("0x%s", hex.EncodeToString(function.Selector[:])),
					Inputs:   params(function.Parameters),
					Outputs:  params(function.Returns),
					Mutates:  function.Mutability != sema.View && function.Mutability != sema.Pure,
					Payable:  function.Mutability == sema.Payable,
				})
			}
		}
	}

	for _, event := range ns.Events {
		if event.Contract >= 0 && !inLinear(contract, event.Contract) {
			continue
		}
		described := Event{Name: event.Name, Indexed: event.Indexed}
		for _, field := range event.Fields {
			described.Fields = append(described.Fields, Param{Name: field.Name, Type: addType(field.Type)})
		}
		metadata.Events = append(metadata.Events, described)
	}

	for _, variable := range contract.Layout {
		metadata.Storage = append(metadata.Storage, StorageEntry{
			Name:   variable.Name,
			Type:   ns.TypeString(variable.Type),
			Slot:   variable.Slot,
			Offset: variable.Offset,
		})
	}
	return metadata
}

func inLinear(contract *sema.ContractDecl, id int) bool {
	for _, linear := range contract.Linear {
		if linear == id {
			return true
		}
	}
	return false
}

// Write places the wasm binary and metadata blob in the output
// directory and returns the written paths.
func Write(outputDir string, metadata Metadata, binary []byte, tgt target.Target) ([]string, error) {
	if outputDir == "" {
		outputDir = "."
	}
	var written []string

	if tgt.MetadataExtension() == ".contract" {
		combined := envelope{Contract: metadata}
		combined.Source.Wasm = hex.EncodeToString(binary)
		combined.Source.Hash = hex.EncodeToString(tgt.Hash(binary))
		blob, err := json.MarshalIndent(combined, "", "  ")
		if err != nil {
			return nil, err
		}
		path := filepath.Join(outputDir, metadata.Name+".contract")
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return nil, err
		}
		return append(written, path), nil
	}

	wasmPath := filepath.Join(outputDir, metadata.Name+".wasm")
	if err := os.WriteFile(wasmPath, binary, 0o644); err != nil {
		return nil, err
	}
	written = append(written, wasmPath)

	blob, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, err
	}
	metaPath := filepath.Join(outputDir, metadata.Name+tgt.MetadataExtension())
	if err := os.WriteFile(metaPath, blob, 0o644); err != nil {
		return nil, err
	}
	return append(written, metaPath), nil
}
