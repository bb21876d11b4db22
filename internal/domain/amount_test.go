package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: `5`, want: "5"},
		{raw: `-2.5`, want: "-2.5"},
		{raw: ` 0.25 `, want: "0.25"},
		{raw: `1e2`, want: "100"},
		{raw: `0`, wantErr: true},
		{raw: `-0.00`, wantErr: true},
		{raw: `0.125`, wantErr: true},
		{raw: `10001`, wantErr: true},
		{raw: `"5"`, wantErr: true},
		{raw: `true`, wantErr: true},
		{raw: `null`, wantErr: true},
		{raw: ``, wantErr: true},
		{raw: `{"hours":5}`, wantErr: true},
		{raw: `2.500`, want: "2.5"},
		{raw: `1e4`, want: "10000"},
		{raw: `1e5`, wantErr: true},
		{raw: `0.5e-13`, wantErr: true},
		{raw: `1.00000000000000000000000000000000001`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseAmount(json.RawMessage(tc.raw))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestParseAmount_HugeExponentRejectedQuickly(t *testing.T) {
	for _, raw := range []string{`1e999999999`, `1e2000000000`, `-1e-2000000000`, `7E+1999999999`} {
		t.Run(raw, func(t *testing.T) {
			start := time.Now()
			_, err := ParseAmount(json.RawMessage(raw))
			require.ErrorIs(t, err, ErrInvalidAmount)
			assert.Less(t, time.Since(start), 100*time.Millisecond)
		})
	}
}

func TestValidateAmount_ExponentBounds(t *testing.T) {
	start := time.Now()
	require.ErrorIs(t, ValidateAmount(decimal.New(1, 2000000000)), ErrInvalidAmount)
	require.ErrorIs(t, ValidateAmount(decimal.New(1, -2000000000)), ErrInvalidAmount)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	require.NoError(t, ValidateAmount(decimal.New(15, -1)))
	require.NoError(t, ValidateAmount(decimal.New(1, 4)))
}

func TestNoteFor(t *testing.T) {
	assert.Equal(t, "added 3 hours", NoteFor(decimal.NewFromInt(3)))
	assert.Equal(t, "removed 2 hours", NoteFor(decimal.NewFromInt(-2)))
	assert.Equal(t, "added 1 hour", NoteFor(decimal.NewFromInt(1)))
	assert.Equal(t, "removed 1 hour", NoteFor(decimal.NewFromInt(-1)))
	assert.Equal(t, "added 1.5 hours", NoteFor(decimal.RequireFromString("1.5")))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@lab.mx", NormalizeEmail("  Ana@LAB.mx \n"))
	assert.True(t, IsEmailKey("ana@lab.mx"))
	assert.False(t, IsEmailKey("3f2a0c1e-uuid"))
}

func TestMemberTypeLabel(t *testing.T) {
	assert.Equal(t, "Graduate Student", MemberGraduate.Label())
	assert.Equal(t, "Lab Member", MemberType("").Label())
}

func TestHistoryEntryJSON(t *testing.T) {
	b, err := json.Marshal(NewHistoryEntry(HourRecord{ID: "r1", Amount: decimal.NewFromInt(-4)}))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"amount":-4`)
	assert.Contains(t, string(b), `"note":"removed 4 hours"`)
}
