package ontology

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/rotisserie/eris"
)

// Parameters is a FHIR Parameters resource.
type Parameters struct {
	ResourceType string      `json:"resourceType"`
	Parameter    []Parameter `json:"parameter,omitempty"`
}

// Parameter is one entry in a Parameters resource. The FHIR value[x]
// choice is flattened to the fields this client actually uses.
type Parameter struct {
	Name         string      `json:"name"`
	ValueURI     string      `json:"valueUri,omitempty"`
	ValueCode    string      `json:"valueCode,omitempty"`
	ValueString  string      `json:"valueString,omitempty"`
	ValueBoolean *bool       `json:"valueBoolean,omitempty"`
	Part         []Parameter `json:"part,omitempty"`
}

// Bundle is a FHIR Bundle resource. Entry resources are kept raw and
// decoded per resourceType.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry is one entry of a batch Bundle.
type BundleEntry struct {
	Request  *BundleRequest  `json:"request,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// BundleRequest describes the operation a batch entry performs.
type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// OperationOutcome is the FHIR error resource returned for failed lookups.
type OperationOutcome struct {
	ResourceType string  `json:"resourceType"`
	Issue        []Issue `json:"issue,omitempty"`
}

// Issue is a single problem in an OperationOutcome.
type Issue struct {
	Severity    string `json:"severity,omitempty"`
	Code        string `json:"code,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// diagnosticsCode recovers the offending code from OperationOutcome
// diagnostics text, which quotes it back for not-found lookups.
var diagnosticsCode = regexp.MustCompile(`\b\d{7,}\b`)

// lookupParameters builds the $lookup request body for one code.
func (c *httpClient) lookupParameters(code string) Parameters {
	return Parameters{
		ResourceType: "Parameters",
		Parameter: []Parameter{
			{Name: "system", ValueURI: c.system},
			{Name: "code", ValueCode: code},
		},
	}
}

// Version performs a $lookup on a known-good sentinel code and returns the
// CodeSystem version reported for it, which identifies the current dm+d
// release.
func (c *httpClient) Version(ctx context.Context, token, code string) (string, error) {
	body, err := c.postFHIR(ctx, c.baseURL+"/CodeSystem/$lookup", token, "application/json", c.lookupParameters(code))
	if err != nil {
		return "", eris.Wrap(err, "ontology: version lookup")
	}

	var params Parameters
	if err := json.Unmarshal(body, &params); err != nil {
		return "", eris.Wrap(err, "ontology: unmarshal version response")
	}

	for _, p := range params.Parameter {
		if p.Name == "version" && p.ValueString != "" {
			return p.ValueString, nil
		}
	}

	return "", eris.Errorf("ontology: no version in $lookup response for code %s", code)
}

// LookupBatch looks up all codes in a single FHIR batch Bundle and returns
// the status for each. Codes the server reports on via OperationOutcome,
// or answers without an inactive property for, come back unknown. Codes
// missing from the response entirely are absent from the map.
func (c *httpClient) LookupBatch(ctx context.Context, token string, codes []string) (map[string]Status, error) {
	if len(codes) == 0 {
		return map[string]Status{}, nil
	}

	bundle := Bundle{
		ResourceType: "Bundle",
		Type:         "batch",
	}
	for _, code := range codes {
		params := c.lookupParameters(code)
		resource, err := json.Marshal(params)
		if err != nil {
			return nil, eris.Wrap(err, "ontology: marshal lookup entry")
		}
		bundle.Entry = append(bundle.Entry, BundleEntry{
			Request: &BundleRequest{
				Method: "POST",
				URL:    "CodeSystem/$lookup",
			},
			Resource: resource,
		})
	}

	body, err := c.postFHIR(ctx, c.baseURL, token, "application/fhir+json", bundle)
	if err != nil {
		return nil, eris.Wrap(err, "ontology: batch lookup")
	}

	var response Bundle
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, eris.Wrap(err, "ontology: unmarshal batch response")
	}

	return parseBatchResponse(response), nil
}

// parseBatchResponse maps each response entry to a code and status.
func parseBatchResponse(bundle Bundle) map[string]Status {
	statuses := make(map[string]Status)

	for _, entry := range bundle.Entry {
		var probe struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(entry.Resource, &probe); err != nil {
			continue
		}

		switch probe.ResourceType {
		case "Parameters":
			var params Parameters
			if err := json.Unmarshal(entry.Resource, &params); err != nil {
				continue
			}
			if code, status, ok := classifyParameters(params); ok {
				statuses[code] = status
			}

		case "OperationOutcome":
			var outcome OperationOutcome
			if err := json.Unmarshal(entry.Resource, &outcome); err != nil {
				continue
			}
			for _, issue := range outcome.Issue {
				if code := diagnosticsCode.FindString(issue.Diagnostics); code != "" {
					statuses[code] = StatusUnknown
					break
				}
			}
		}
	}

	return statuses
}

// classifyParameters extracts the code and status from one Parameters
// response. The inactive property decides the status: valueBoolean false
// means active, true means inactive. Without it the code is unknown.
func classifyParameters(params Parameters) (string, Status, bool) {
	var code string
	status := StatusUnknown

	for _, p := range params.Parameter {
		if p.Name == "code" && p.ValueCode != "" {
			code = p.ValueCode
		}
	}
	if code == "" {
		return "", StatusUnknown, false
	}

	for _, p := range params.Parameter {
		if p.Name != "property" {
			continue
		}
		isInactiveProperty := false
		for _, part := range p.Part {
			if part.Name == "code" && part.ValueCode == "inactive" {
				isInactiveProperty = true
				break
			}
		}
		if !isInactiveProperty {
			continue
		}
		for _, part := range p.Part {
			if part.Name == "value" && part.ValueBoolean != nil {
				if *part.ValueBoolean {
					status = StatusInactive
				} else {
					status = StatusActive
				}
			}
		}
	}

	return code, status, true
}
