// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report interprets the JSON report a conversion sandbox produces
// for a finished task: it rejects reports that matched a blacklisted
// detection signature and extracts the base64-encoded converted file.
package report

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// document holds the fields of a sandbox report the analyser reads. Each is
// kept raw so a malformed field never hides the others.
type document struct {
	Signatures json.RawMessage `json:"signatures"`
	Info       json.RawMessage `json:"info"`
	// Converted is nil when the field is absent from the report.
	Converted json.RawMessage `json:"converted"`
}

type signature struct {
	Name        string
	Description string
}

// signatures extracts the entries whose name is a string. Entries of any
// other shape are skipped.
func (d document) signatures() []signature {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(d.Signatures, &entries); err != nil {
		return nil
	}
	sigs := make([]signature, 0, len(entries))
	for _, e := range entries {
		var sig signature
		if json.Unmarshal(e["name"], &sig.Name) != nil {
			continue
		}
		json.Unmarshal(e["description"], &sig.Description)
		sigs = append(sigs, sig)
	}
	return sigs
}

// taskID returns info.id as written in the report, or "" when absent.
func (d document) taskID() string {
	var info struct {
		ID json.RawMessage `json:"id"`
	}
	json.Unmarshal(d.Info, &info)
	return string(info.ID)
}

// Analyser checks reports against a signature blacklist and extracts the
// converted payload.
type Analyser struct {
	blacklist map[string]struct{}
}

// NewAnalyser creates an Analyser that rejects any report containing one of
// the named signatures.
func NewAnalyser(signatures []string) *Analyser {
	bl := make(map[string]struct{}, len(signatures))
	for _, s := range signatures {
		if s = strings.TrimSpace(s); s != "" {
			bl[s] = struct{}{}
		}
	}
	return &Analyser{blacklist: bl}
}

// Analyse interprets a raw JSON report. The checks run in a fixed order and
// the first failing check decides the code:
//
//  1. a blacklisted signature is present (the payload is never released)
//  2. the converted field is missing
//  3. the converted field is null or empty
//  4. the converted field is not a valid base64 string
func (a *Analyser) Analyse(raw []byte) types.Outcome {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Error().Err(err).Msg("report is not a JSON object")
		return types.Failed(types.CodeNoPayload)
	}
	taskID := doc.taskID()

	for _, sig := range doc.signatures() {
		if _, hit := a.blacklist[sig.Name]; hit {
			log.Error().
				Str("task_id", taskID).
				Str("signature", sig.Name).
				Str("description", sig.Description).
				Msg("blacklisted signature detected")
			return types.Failed(types.CodeSignatureDetected)
		}
	}

	if doc.Converted == nil {
		log.Info().Str("task_id", taskID).Msg("report has no converted file")
		return types.Failed(types.CodeNoPayload)
	}
	if string(doc.Converted) == "null" {
		log.Info().Str("task_id", taskID).Msg("converted file is empty")
		return types.Failed(types.CodeEmptyPayload)
	}

	var encoded string
	if err := json.Unmarshal(doc.Converted, &encoded); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("converted file is not a string")
		return types.Failed(types.CodeDecodeError)
	}
	if encoded == "" {
		log.Info().Str("task_id", taskID).Msg("converted file is empty")
		return types.Failed(types.CodeEmptyPayload)
	}

	// StdEncoding skips the line breaks MIME-style encoders insert.
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not decode converted file")
		return types.Failed(types.CodeDecodeError)
	}

	return types.Succeeded(payload)
}
