package employee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGradeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Ｇ１", "g1"},
		{"  G1 ", "g1"},
		{"主任　Ａ", "主任 a"},
		{"Senior\t Staff", "senior staff"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeGradeName(tt.in), "input %q", tt.in)
	}
}

func TestClampedDependents(t *testing.T) {
	n, w := Record{Dependents: 3}.ClampedDependents()
	assert.Equal(t, 3, n)
	assert.Nil(t, w)

	n, w = Record{Dependents: 12}.ClampedDependents()
	assert.Equal(t, MaxDependents, n)
	require.NotNil(t, w)
	assert.Equal(t, "12", w.Original)
	assert.Equal(t, "7", w.Applied)

	n, w = Record{Dependents: -2}.ClampedDependents()
	assert.Zero(t, n)
	require.NotNil(t, w)
}

func TestPositiveAllowances(t *testing.T) {
	// GIVEN: One negative allowance among three
	// WHEN: Summing
	// THEN: The negative one counts as zero and is reported

	r := Record{Allowances: Allowances{
		Personal:      decimal.NewFromInt(10_000),
		Qualification: decimal.NewFromInt(-3_000),
		Vehicle:       decimal.NewFromInt(5_000),
	}}
	total, warnings := r.PositiveAllowances()
	assert.True(t, total.Equal(decimal.NewFromInt(15_000)))
	require.Len(t, warnings, 1)
	assert.Equal(t, "allowances.qualification", warnings[0].Field)
}

func TestRecordFlags(t *testing.T) {
	assert.True(t, Record{}.WithholdingRequired(), "unset flag means required")
	assert.False(t, Record{Withholding: WithholdingNone}.WithholdingRequired())
	assert.True(t, Record{EmploymentForm: FormContractor}.IsContractor())

	assert.Equal(t, "S001", Record{ID: "e1", StaffKey: "S001"}.CountsKey())
	assert.Equal(t, "e1", Record{ID: "e1"}.CountsKey())
}

func TestFilterMatch(t *testing.T) {
	r := Record{Site: "shibuya", EmploymentForm: FormPartTime}

	assert.True(t, Filter{}.Match(r))
	assert.True(t, Filter{Scope: "shibuya", Form: FormPartTime}.Match(r))
	assert.False(t, Filter{Scope: "ikebukuro"}.Match(r))
	assert.False(t, Filter{Form: FormEmployee}.Match(r))
}
