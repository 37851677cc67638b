package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveSuccessRequiresReport(t *testing.T) {
	p := New("q", 3)
	require.False(t, p.DeriveSuccess())

	p.Report = &Report{Overview: "ok"}
	require.True(t, p.DeriveSuccess())
}

func TestDeriveSuccessFalseOnUnresolvedSQLError(t *testing.T) {
	p := New("q", 3)
	p.Report = &Report{Overview: "ok"}
	p.SQLError = "not read-only"
	require.False(t, p.DeriveSuccess())
}

func TestDeriveSuccessFalseOnFailedResultBlock(t *testing.T) {
	p := New("q", 3)
	p.Report = &Report{Overview: "ok"}
	p.RawData = append(p.RawData, ResultBlock{SQLIndex: 0, Error: "connection refused"})
	require.False(t, p.DeriveSuccess())
}

func TestCloneCopiesSuccess(t *testing.T) {
	p := New("q", 3)
	p.Report = &Report{Overview: "ok"}
	p.Success = p.DeriveSuccess()

	clone := p.Clone()
	require.True(t, clone.Success)
}
