package pipeline

import (
	"context"

	"github.com/bennettoxford/dmdwatch/internal/model"
	"github.com/bennettoxford/dmdwatch/pkg/ontology"
)

type mockClient struct {
	token      string
	tokenErr   error
	version    string
	versionErr error
	statuses   map[string]ontology.Status
	lookupErr  error

	lookedUp []string
}

func (m *mockClient) Token(_ context.Context) (string, error) {
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return m.token, nil
}

func (m *mockClient) Version(_ context.Context, _, _ string) (string, error) {
	if m.versionErr != nil {
		return "", m.versionErr
	}
	return m.version, nil
}

func (m *mockClient) LookupBatch(_ context.Context, _ string, codes []string) (map[string]ontology.Status, error) {
	m.lookedUp = append(m.lookedUp, codes...)
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.statuses, nil
}

type mockExtractor struct {
	codes map[string][]model.Code
	err   error

	calls int
}

func (m *mockExtractor) Extract() (map[string][]model.Code, error) {
	m.calls++
	return m.codes, m.err
}

type mockRenderer struct {
	existing    []string
	existingErr error
	reportErr   error
	indexErr    error
	xlsxErr     error

	wroteVersion string
	wroteCodes   map[string][]model.ClassifiedCode
	wroteIndex   bool
	wroteXLSX    []model.ClassifiedCode
}

func (m *mockRenderer) WriteReport(version string, byFolder map[string][]model.ClassifiedCode) error {
	if m.reportErr != nil {
		return m.reportErr
	}
	m.wroteVersion = version
	m.wroteCodes = byFolder
	return nil
}

func (m *mockRenderer) WriteIndex() error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.wroteIndex = true
	return nil
}

func (m *mockRenderer) WriteProblemXLSX(_ string, problems []model.ClassifiedCode) error {
	if m.xlsxErr != nil {
		return m.xlsxErr
	}
	m.wroteXLSX = problems
	return nil
}

func (m *mockRenderer) ExistingVersions() ([]string, error) {
	return m.existing, m.existingErr
}

type mockStore struct {
	err      error
	recorded []model.Run
}

func (m *mockStore) RecordRun(_ context.Context, run model.Run) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.recorded = append(m.recorded, run)
	return "run-1", nil
}

func (m *mockStore) ListRuns(_ context.Context, _ int) ([]model.Run, error) {
	return m.recorded, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }
