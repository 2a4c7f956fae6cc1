package main

import (
	"encoding/json"
	"fmt"
	"os"

	"srx-config-parser/internal/model"
	"srx-config-parser/internal/parser"
)

type exportObject struct {
	Kind   model.Kind   `json:"kind"`
	Object model.Object `json:"object"`
}

type exportDocument struct {
	Source             string                    `json:"source"`
	Version            string                    `json:"version"`
	Objects            []exportObject            `json:"objects"`
	GlobalRules        []*model.GlobalPolicyRule `json:"global_rules"`
	AmbiguousAddresses []string                  `json:"ambiguous_addresses,omitempty"`
	ResolvedRules      []parser.ResolvedRule     `json:"resolved_rules,omitempty"`
}

func newExportDocument(source string, p *parser.JunosParser, resolve bool) exportDocument {
	doc := exportDocument{
		Source:             source,
		Version:            p.Version,
		Objects:            make([]exportObject, 0, p.Objects.Len()),
		GlobalRules:        p.GlobalRules,
		AmbiguousAddresses: p.Zones.Ambiguous(),
	}
	for _, obj := range p.Objects.Objects() {
		doc.Objects = append(doc.Objects, exportObject{Kind: obj.Kind(), Object: obj})
	}
	if resolve {
		doc.ResolvedRules = p.ResolveZonePolicies()
	}
	return doc
}

func writeExport(path, source string, p *parser.JunosParser, resolve bool) error {
	data, err := json.MarshalIndent(newExportDocument(source, p, resolve), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
